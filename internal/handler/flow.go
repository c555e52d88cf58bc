package handler

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/recurring/internal/generator"
)

// Component custom IDs take the form "<component>:<flow instance>".

func InstanceIDFromInteraction(i *discordgo.InteractionCreate) string {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		return InstanceIDFromCustomID(i.MessageComponentData().CustomID)
	case discordgo.InteractionModalSubmit:
		return InstanceIDFromCustomID(i.ModalSubmitData().CustomID)
	}
	return ""
}

func InstanceIDFromCustomID(customID string) string {
	_, instanceID, ok := strings.Cut(customID, ":")
	if !ok {
		return ""
	}
	return instanceID
}

func componentMatcher(component string) func(*discordgo.InteractionCreate) bool {
	return func(i *discordgo.InteractionCreate) bool {
		if i.Type != discordgo.InteractionMessageComponent {
			return false
		}
		name, _, _ := strings.Cut(i.MessageComponentData().CustomID, ":")
		return name == component
	}
}

func commandMatcher(name string) func(*discordgo.InteractionCreate) bool {
	return func(i *discordgo.InteractionCreate) bool {
		return i.Type == discordgo.InteractionApplicationCommand && i.ApplicationCommandData().Name == name
	}
}

// FlowContext is carried between the steps of one flow instance.
type FlowContext struct {
	InstanceID string
	State      map[string]any
}

type Node struct {
	ID      string
	Matcher func(*discordgo.InteractionCreate) bool
	Handler func(DiscordSession, *discordgo.InteractionCreate, *FlowContext) error
	Next    []*Node
}

type Flow struct {
	ID   string
	Root *Node
}

// FlowTTL bounds how long a flow waits for its next interaction. Discord
// interaction tokens expire after fifteen minutes.
const FlowTTL = 15 * time.Minute

type flowSession struct {
	node      *Node
	ctx       *FlowContext
	expiresAt time.Time
}

// FlowManager routes interactions to registered flows. A slash command
// starts a new flow instance and component interactions advance it.
type FlowManager struct {
	mu       sync.Mutex
	flows    []*Flow
	sessions map[string]*flowSession

	idGenerator generator.Generator[string]
	now         func() time.Time
}

func NewFlowManager(idGenerator generator.Generator[string], now func() time.Time) *FlowManager {
	if idGenerator == nil {
		idGenerator = &generator.UUIDV4Generator{}
	}
	if now == nil {
		now = time.Now
	}
	return &FlowManager{
		sessions:    make(map[string]*flowSession),
		idGenerator: idGenerator,
		now:         now,
	}
}

func (fm *FlowManager) RegisterFlow(flow *Flow) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	for _, f := range fm.flows {
		if f.ID == flow.ID {
			panic(fmt.Sprintf("flow %q already registered", flow.ID))
		}
	}
	fm.flows = append(fm.flows, flow)
}

// Router dispatches an interaction. Interactions that match no flow and
// no live flow instance are ignored.
func (fm *FlowManager) Router(s DiscordSession, i *discordgo.InteractionCreate) error {
	if instanceID := InstanceIDFromInteraction(i); instanceID != "" {
		if sess := fm.session(instanceID); sess != nil {
			return fm.advance(s, i, sess)
		}
		return &UserError{Message: "This menu has expired, run the command again."}
	}
	return fm.start(s, i)
}

// Active reports how many flow instances are waiting for input.
func (fm *FlowManager) Active() int {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.pruneLocked()
	return len(fm.sessions)
}

func (fm *FlowManager) session(instanceID string) *flowSession {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.pruneLocked()
	return fm.sessions[instanceID]
}

func (fm *FlowManager) pruneLocked() {
	now := fm.now()
	for id, sess := range fm.sessions {
		if !now.Before(sess.expiresAt) {
			delete(fm.sessions, id)
		}
	}
}

func (fm *FlowManager) finish(instanceID string) {
	fm.mu.Lock()
	delete(fm.sessions, instanceID)
	fm.mu.Unlock()
}

func (fm *FlowManager) advance(s DiscordSession, i *discordgo.InteractionCreate, sess *flowSession) error {
	var next *Node
	for _, n := range sess.node.Next {
		if n.Matcher(i) {
			next = n
			break
		}
	}
	if next == nil {
		return nil
	}

	sess.node = next
	err := next.Handler(s, i, sess.ctx)
	if err != nil || len(next.Next) == 0 {
		fm.finish(sess.ctx.InstanceID)
	}
	return err
}

func (fm *FlowManager) start(s DiscordSession, i *discordgo.InteractionCreate) error {
	fm.mu.Lock()
	var flow *Flow
	for _, f := range fm.flows {
		if f.Root.Matcher(i) {
			flow = f
			break
		}
	}
	fm.mu.Unlock()
	if flow == nil {
		return nil
	}

	instanceID, err := fm.idGenerator.Next()
	if err != nil {
		return fmt.Errorf("failed to generate instance ID: %w", err)
	}
	sess := &flowSession{
		node:      flow.Root,
		ctx:       &FlowContext{InstanceID: instanceID, State: make(map[string]any)},
		expiresAt: fm.now().Add(FlowTTL),
	}

	if len(flow.Root.Next) > 0 {
		fm.mu.Lock()
		fm.sessions[instanceID] = sess
		fm.mu.Unlock()
	}

	err = flow.Root.Handler(s, i, sess.ctx)
	if err != nil {
		fm.finish(instanceID)
	}
	return err
}
