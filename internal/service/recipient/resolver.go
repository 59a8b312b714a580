package recipient

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/notify-engine/internal/domain"
)

// DefaultLookupConcurrency bounds parallel directory calls per resolution.
const DefaultLookupConcurrency = 8

// Request is the input to a single resolution.
type Request struct {
	ResourceType      domain.ResourceType
	RuleRecipients    []domain.AutomationRuleRecipient
	AdditionalUserIDs []string
	AdditionalEmails  []string
}

// Resolver implements recipient resolution. It is safe for concurrent use if
// its collaborators are.
type Resolver struct {
	dir         Directory
	prefs       PreferenceStore
	concurrency int
}

// NewResolver creates a resolver backed by the given directory and
// preference store.
func NewResolver(dir Directory, prefs PreferenceStore) *Resolver {
	return &Resolver{dir: dir, prefs: prefs, concurrency: DefaultLookupConcurrency}
}

// SetLookupConcurrency changes how many directory calls may run at once.
func (r *Resolver) SetLookupConcurrency(n int) {
	if n > 0 {
		r.concurrency = n
	}
}

// Resolve returns the de-duplicated destination addresses for req. An empty
// result is valid and means there is nobody to notify.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := newAddressSet()
	users := newIDSet()
	var roles []string

	for _, rc := range req.RuleRecipients {
		switch rc.RecipientType {
		case domain.RecipientCustomEmail:
			out.add(rc.EmailAddress)
		case domain.RecipientUser:
			users.add(rc.UserID)
		case domain.RecipientRole:
			if name := strings.TrimSpace(rc.RoleName); name != "" {
				roles = append(roles, name)
			}
		}
	}

	roleEmails, err := r.expandRoles(ctx, roles, users)
	if err != nil {
		return nil, err
	}
	for _, id := range req.AdditionalUserIDs {
		users.add(id)
	}

	if len(users.ids) > 0 {
		emails, err := r.userEmails(ctx, users.ids, roleEmails, req.ResourceType)
		if err != nil {
			return nil, err
		}
		for _, e := range emails {
			out.add(e)
		}
	}

	for _, e := range req.AdditionalEmails {
		out.add(e)
	}
	return out.list(), nil
}

// expandRoles loads every role's members concurrently, adds members that
// have an address to users, and returns their directory addresses keyed by
// user id.
func (r *Resolver) expandRoles(ctx context.Context, roles []string, users *idSet) (map[string]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}

	members := make([][]domain.DirectoryUser, len(roles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, role := range roles {
		g.Go(func() error {
			m, err := r.dir.UsersInRole(gctx, role)
			if err != nil {
				return fmt.Errorf("expand role %q: %w", role, err)
			}
			members[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	emails := make(map[string]string)
	for _, list := range members {
		for _, u := range list {
			if u.ID == "" || strings.TrimSpace(u.Email) == "" {
				continue
			}
			if _, ok := emails[u.ID]; !ok {
				emails[u.ID] = u.Email
			}
			users.add(u.ID)
		}
	}
	return emails, nil
}

// userEmails applies preference gating to ids and returns the addresses of
// the users that allow rt, in id order.
func (r *Resolver) userEmails(ctx context.Context, ids []string, known map[string]string, rt domain.ResourceType) ([]string, error) {
	prefs, err := r.prefs.LoadPreferences(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	var allowed []string
	for _, id := range ids {
		var pref *domain.NotificationPreference
		if p, ok := prefs[id]; ok {
			pref = &p
		}
		if Allows(pref, rt) {
			allowed = append(allowed, id)
		}
	}

	emails := make([]string, len(allowed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range allowed {
		if e, ok := known[id]; ok {
			emails[i] = e
			continue
		}
		g.Go(func() error {
			e, err := r.dir.EmailForUser(gctx, id)
			if err != nil {
				return fmt.Errorf("lookup email for user %s: %w", id, err)
			}
			emails[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return emails, nil
}

// addressSet keeps the first spelling of each address, compared
// case-insensitively, in insertion order.
type addressSet struct {
	seen  map[string]bool
	order []string
}

func newAddressSet() *addressSet { return &addressSet{seen: make(map[string]bool)} }

func (s *addressSet) add(email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		return
	}
	key := strings.ToLower(email)
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.order = append(s.order, email)
}

func (s *addressSet) list() []string { return s.order }

type idSet struct {
	seen map[string]bool
	ids  []string
}

func newIDSet() *idSet { return &idSet{seen: make(map[string]bool)} }

func (s *idSet) add(id string) {
	id = strings.TrimSpace(id)
	if id == "" || s.seen[id] {
		return
	}
	s.seen[id] = true
	s.ids = append(s.ids, id)
}
