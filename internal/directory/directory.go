// Package directory resolves dialog responsibles against the remote user
// directory and the fixed supervisor roster. The platform's responsible
// id is not guaranteed to match the directory id for every account type,
// so resolution is best-effort with a name-substring fallback.
package directory

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"chat-quality-go/internal/logger"
	"chat-quality-go/internal/types"
)

// RosterEntry is one supervisor-maintained manager identity.
type RosterEntry struct {
	Name  string `yaml:"name" json:"name"`
	Email string `yaml:"email" json:"email"`
}

// LoadRoster reads the roster YAML artifact. A missing path yields an
// empty roster: attribution then relies on the chat responsibles alone.
func LoadRoster(path string) ([]RosterEntry, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var doc struct {
		Managers []RosterEntry `yaml:"managers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	return doc.Managers, nil
}

// UsersLister is the slice of the API client the resolver needs.
type UsersLister interface {
	GetUsers(ctx context.Context, limit int) ([]types.User, error)
}

// Directory is an immutable snapshot of the user directory plus the
// roster mapping discovered against it. Lookups are side-effect-free.
type Directory struct {
	byID          map[int64]types.User
	byName        map[string]int64
	byUsername    map[string]int64
	rosterByEmail map[string]int64
	roster        []RosterEntry
}

// Load fetches the user directory once and indexes it.
func Load(ctx context.Context, api UsersLister, roster []RosterEntry) (*Directory, error) {
	users, err := api.GetUsers(ctx, 100)
	if err != nil {
		return nil, fmt.Errorf("load user directory: %w", err)
	}
	return New(users, roster), nil
}

// New indexes an already fetched directory snapshot.
func New(users []types.User, roster []RosterEntry) *Directory {
	d := &Directory{
		byID:          make(map[int64]types.User, len(users)),
		byName:        make(map[string]int64, len(users)),
		byUsername:    make(map[string]int64, len(users)),
		rosterByEmail: make(map[string]int64, len(roster)),
		roster:        roster,
	}
	log := logger.New().WithComponent("directory")
	for _, u := range users {
		d.byID[u.ID] = u
		if name := normalize(u.FullName()); name != "" {
			d.byName[name] = u.ID
		}
		if u.Username != "" {
			d.byUsername[strings.ToLower(u.Username)] = u.ID
		}
	}
	for _, entry := range roster {
		id, ok := d.matchRosterName(entry.Name)
		if !ok {
			log.WithField("manager", entry.Name).Warn("roster entry not found in user directory")
			continue
		}
		d.rosterByEmail[strings.ToLower(entry.Email)] = id
	}
	return d
}

// matchRosterName finds the directory user whose full name shares the
// most name tokens with the roster name. At least one token must match.
func (d *Directory) matchRosterName(rosterName string) (int64, bool) {
	tokens := strings.Fields(normalize(rosterName))
	if len(tokens) == 0 {
		return 0, false
	}
	bestID, bestHits := int64(0), 0
	for name, id := range d.byName {
		hits := 0
		for _, tok := range tokens {
			if strings.Contains(name, tok) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits, bestID = hits, id
		}
	}
	if bestHits == 0 {
		return 0, false
	}
	return bestID, true
}

// ResolveManagerID maps a roster email to a discovered directory id.
func (d *Directory) ResolveManagerID(email string) (int64, bool) {
	id, ok := d.rosterByEmail[strings.ToLower(email)]
	return id, ok
}

// User returns the directory record for an id.
func (d *Directory) User(id int64) (types.User, bool) {
	u, ok := d.byID[id]
	return u, ok
}

// UserIDByName resolves a normalized full name or username to an id.
func (d *Directory) UserIDByName(name string) (int64, bool) {
	n := normalize(name)
	if id, ok := d.byName[n]; ok {
		return id, true
	}
	id, ok := d.byUsername[strings.ToLower(name)]
	return id, ok
}

// ResolveResponsible attributes a dialog's responsible reference to a
// manager identity: directory id lookup first, then a name-substring
// scan over the already-loaded chats.
func (d *Directory) ResolveResponsible(resp *types.Responsible, chats []types.Chat) (types.Manager, bool) {
	if resp == nil || resp.IsBot() {
		return types.Manager{}, false
	}
	if u, ok := d.byID[resp.ID]; ok {
		return types.Manager{ID: u.ID, Name: coalesce(u.FullName(), resp.DisplayName()), Email: u.Email}, true
	}
	want := normalize(resp.DisplayName())
	if want == "" {
		return types.Manager{}, false
	}
	for _, c := range chats {
		if c.LastDialog == nil || c.LastDialog.Responsible == nil {
			continue
		}
		r := c.LastDialog.Responsible
		if r.ID == resp.ID || strings.Contains(normalize(r.DisplayName()), want) {
			return types.Manager{ID: r.ID, Name: r.DisplayName()}, true
		}
	}
	return types.Manager{}, false
}

// Managers extracts the unique human responsibles from a chat set, in
// first-seen order, enriched with directory emails when resolvable.
func (d *Directory) Managers(chats []types.Chat) []types.Manager {
	var out []types.Manager
	seen := make(map[int64]struct{})
	for _, c := range chats {
		if c.LastDialog == nil || c.LastDialog.Responsible == nil {
			continue
		}
		r := c.LastDialog.Responsible
		if r.IsBot() {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		m := types.Manager{ID: r.ID, Name: r.DisplayName()}
		if m.Name == "" {
			m.Name = fmt.Sprintf("Manager %d", r.ID)
		}
		if u, ok := d.byID[r.ID]; ok && u.Email != "" {
			m.Email = u.Email
		}
		out = append(out, m)
	}
	return out
}

// CountDialogsForManager counts chats whose last dialog is attributed to
// the manager.
func CountDialogsForManager(managerID int64, chats []types.Chat) int {
	n := 0
	for _, c := range chats {
		if c.LastDialog != nil && c.LastDialog.Responsible != nil && c.LastDialog.Responsible.ID == managerID {
			n++
		}
	}
	return n
}

var diacritics = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

func normalize(s string) string {
	return strings.Join(strings.Fields(diacritics.Replace(strings.ToLower(s))), " ")
}

func coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
