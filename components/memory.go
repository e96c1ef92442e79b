package components

import (
	"fmt"
	"sync"

	"github.com/bububa/regulation-agents/schema"
)

type MemoryStore interface {
	MaxMessages() int
	TurnID() string
	NewTurn() MemoryStore
	NewMessage(MessageRole, schema.Schema) *Message
	History() []Message
	Reset() MemoryStore
	Copy(MemoryStore)
	MessageCount() int
}

// Memory Manages the chat history for an AI agent.
// threadsafe
type Memory struct {
	//	history is a list of messages representing the chat history.
	history []Message
	//	turnID is the ID of the current turn.
	turnID string
	// maxMessages is the maximum number of messages to keep in history.
	// When exceeded, oldest messages are removed first.
	maxMessages int
	// mtx sync lock
	mtx *sync.RWMutex
}

var _ MemoryStore = (*Memory)(nil)

// NewMemory initializes the Memory with an empty history and optional constraints.
func NewMemory(maxMessages int) *Memory {
	return &Memory{
		maxMessages: maxMessages,
		history:     make([]Message, 0, maxMessages+1),
		mtx:         new(sync.RWMutex),
	}
}

// MaxMessages returns the max number of messages
func (m Memory) MaxMessages() int {
	return m.maxMessages
}

// SetMaxMessages set the max number of messages
func (m *Memory) SetMaxMessages(maxMessages int) *Memory {
	m.maxMessages = maxMessages
	return m
}

// TurnID returns the current turn ID
func (m *Memory) TurnID() string {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.turnID
}

// SetTurnID set the current turn ID
func (m *Memory) SetTurnID(turnID string) MemoryStore {
	m.mtx.Lock()
	m.turnID = turnID
	m.mtx.Unlock()
	return m
}

// NewTurn initializes a new turn by generating a random turn ID.
func (m *Memory) NewTurn() MemoryStore {
	return m.SetTurnID(NewTurnID())
}

// NewMessage adds a message to the chat history and manages overflow.
func (m *Memory) NewMessage(role MessageRole, content schema.Schema) *Message {
	m.mtx.Lock()
	msg := NewMessage(role, content).SetTurnID(m.turnID)
	// Manages the chat history overflow based on max_messages constraint.
	m.history = append(m.history, *msg)
	l := len(m.history)
	if m.maxMessages > 0 && l > m.maxMessages {
		m.history = m.history[1:]
	}
	m.mtx.Unlock()
	return msg
}

// AddTurn records a question and its answer as one new turn
func (m *Memory) AddTurn(question schema.Schema, answer schema.Schema) {
	turnID := NewTurnID()
	m.mtx.Lock()
	m.turnID = turnID
	m.history = append(m.history,
		*NewMessage(UserRole, question).SetTurnID(turnID),
		*NewMessage(AssistantRole, answer).SetTurnID(turnID),
	)
	if over := len(m.history) - m.maxMessages; m.maxMessages > 0 && over > 0 {
		m.history = m.history[over:]
	}
	m.mtx.Unlock()
}

// QATurns returns the complete question/answer turns kept in history, oldest first.
// Turns cut by the max messages limit are skipped.
func (m *Memory) QATurns() []schema.Turn {
	history := m.History()
	ret := make([]schema.Turn, 0, len(history)/2)
	for i := 0; i+1 < len(history); i++ {
		q, a := history[i], history[i+1]
		if q.Role() != UserRole || a.Role() != AssistantRole || q.TurnID() != a.TurnID() {
			continue
		}
		ret = append(ret, schema.Turn{Question: q.StringifiedContent(), Answer: a.StringifiedContent()})
		i++
	}
	return ret
}

// SetHistory set a copy of chat history
func (m *Memory) SetHistory(history []Message) *Memory {
	m.mtx.Lock()
	m.history = make([]Message, len(history))
	copy(m.history, history)
	m.mtx.Unlock()
	return m
}

// History returns a copy of the chat history
func (m *Memory) History() []Message {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	ret := make([]Message, len(m.history))
	copy(ret, m.history)
	return ret
}

// Turns returns the number of distinct turns kept in history
func (m *Memory) Turns() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	var (
		ret  int
		last string
	)
	for idx, v := range m.history {
		if idx == 0 || v.TurnID() != last {
			ret++
		}
		last = v.TurnID()
	}
	return ret
}

// Copy creates a copy of the chat memory.
func (m *Memory) Copy(src MemoryStore) {
	m.SetMaxMessages(src.MaxMessages()).SetTurnID(src.TurnID())
	m.SetHistory(src.History())
}

func (m *Memory) Reset() MemoryStore {
	m.mtx.Lock()
	m.history = make([]Message, 0, m.maxMessages)
	m.turnID = ""
	m.mtx.Unlock()
	return m
}

// DeleteTurn delete messages from the memory by its turn ID.
// returns Error if the specified turn ID is not found in the memory
func (m *Memory) DeleteTurn(turnID string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	l := len(m.history)
	list := make([]Message, 0, l)
	for _, v := range m.history {
		if v.TurnID() == turnID {
			continue
		}
		list = append(list, v)
	}
	m.history = list
	num := len(list)
	if num == l {
		return fmt.Errorf("TurnID %s not found in memory", turnID)
	}
	// Update current_turn_id if necessary
	if len(list) == 0 {
		m.turnID = ""
	} else if turnID == m.turnID {
		m.turnID = m.history[num-1].TurnID()
	}
	return nil
}

// MessageCount returns the number of messages in the chat history.
func (m *Memory) MessageCount() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return len(m.history)
}

// Sessions keeps one Memory per conversation key, evicting the least recently used
// session once maxSessions is reached.
// threadsafe
type Sessions struct {
	maxSessions int
	maxMessages int
	items       map[string]*sessionItem
	mtx         sync.Mutex
	tick        uint64
}

type sessionItem struct {
	memory *Memory
	used   uint64
}

// NewSessions returns a session memory registry
func NewSessions(maxSessions int, maxMessages int) *Sessions {
	return &Sessions{
		maxSessions: maxSessions,
		maxMessages: maxMessages,
		items:       make(map[string]*sessionItem),
	}
}

// Get returns the memory of a session, creating it when missing
func (s *Sessions) Get(key string) *Memory {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.tick++
	if item, ok := s.items[key]; ok {
		item.used = s.tick
		return item.memory
	}
	if s.maxSessions > 0 && len(s.items) >= s.maxSessions {
		var (
			oldest string
			used   uint64
		)
		for k, v := range s.items {
			if oldest == "" || v.used < used {
				oldest = k
				used = v.used
			}
		}
		delete(s.items, oldest)
	}
	mem := NewMemory(s.maxMessages)
	s.items[key] = &sessionItem{memory: mem, used: s.tick}
	return mem
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.items)
}

// Delete drops a session
func (s *Sessions) Delete(key string) {
	s.mtx.Lock()
	delete(s.items, key)
	s.mtx.Unlock()
}
