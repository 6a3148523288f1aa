package robot

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrUnknownButton      = errors.New("robot: unknown hub button")
	ErrInvalidDestination = errors.New("robot: invalid radio destination")
)

// Directory finds the robot driven by a player in the arena.
type Directory interface {
	Lookup(player int) (*Robot, bool)
}

// Message is one radio message. Sender is the sending robot's player number.
type Message struct {
	Value  any `json:"value"`
	Sender int `json:"sender"`
}

var (
	allPlayers = []int{0, 1, 2, 3}
	teamMates  = [][]int{{1}, {0}, {3}, {2}}
)

type destKind int

const (
	destAll destKind = iota
	destTeam
	destPlayers
)

// Destination selects radio recipients.
type Destination struct {
	kind    destKind
	players []int
}

var (
	ToAll  = Destination{kind: destAll}
	ToTeam = Destination{kind: destTeam}
)

func ToPlayers(players ...int) Destination {
	return Destination{kind: destPlayers, players: players}
}

// ParseDestination accepts "all", "team" or a comma separated list of player numbers.
func ParseDestination(s string) (Destination, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "all", "":
		return ToAll, nil
	case "team":
		return ToTeam, nil
	}
	var players []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Destination{}, fmt.Errorf("%w: %q", ErrInvalidDestination, s)
		}
		players = append(players, n)
	}
	return ToPlayers(players...), nil
}

func (d Destination) resolve(sender int) []int {
	switch d.kind {
	case destAll:
		return allPlayers
	case destTeam:
		if sender < 0 || sender >= len(teamMates) {
			return teamMates[0]
		}
		return teamMates[sender]
	default:
		return d.players
	}
}

// RadioSend delivers value to mailbox on every destination robot except the
// sender and returns how many robots received it.
func (r *Robot) RadioSend(to Destination, mailbox string, value any) int {
	if r.dir == nil {
		return 0
	}
	delivered := 0
	for _, p := range to.resolve(r.player) {
		if p == r.player {
			continue
		}
		rcpt, ok := r.dir.Lookup(p)
		if !ok || rcpt == nil || rcpt == r {
			continue
		}
		rcpt.deliver(mailbox, Message{Value: value, Sender: r.player})
		delivered++
	}
	return delivered
}

func (r *Robot) deliver(mailbox string, m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mailboxes[mailbox] = append(r.mailboxes[mailbox], m)
}

// RadioAvailable reports how many messages wait in mailbox.
func (r *Robot) RadioAvailable(mailbox string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mailboxes[mailbox])
}

// RadioRead pops the oldest message from mailbox.
func (r *Robot) RadioRead(mailbox string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue := r.mailboxes[mailbox]
	if len(queue) == 0 {
		return Message{}, false
	}
	m := queue[0]
	queue[0] = Message{}
	r.mailboxes[mailbox] = queue[1:]
	return m, true
}

func (r *Robot) RadioEmpty(mailbox string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.mailboxes, mailbox)
}

func (r *Robot) RadioEmptyAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mailboxes = make(map[string][]Message)
}

// HubButtonNames lists the buttons on the robot's hub.
var HubButtonNames = []string{"backspace", "up", "down", "left", "right", "enter"}

func validButton(name string) bool {
	for _, b := range HubButtonNames {
		if b == name {
			return true
		}
	}
	return false
}

func (r *Robot) SetHubButton(name string, pressed bool) error {
	if !validButton(name) {
		return fmt.Errorf("%w: %q", ErrUnknownButton, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buttons[name] = pressed
	return nil
}

func (r *Robot) HubButton(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buttons[name]
}

// PressedButtons returns the pressed hub buttons in name order.
func (r *Robot) PressedButtons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for name, pressed := range r.buttons {
		if pressed {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
