package slackbot

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
)

const userCacheTTL = 5 * time.Minute

type userLister interface {
	GetUsers(options ...slack.GetUsersOption) ([]slack.User, error)
}

type userDirectory struct {
	api userLister

	mu        sync.Mutex
	users     []slack.User
	fetchedAt time.Time
}

func newUserDirectory(api userLister) *userDirectory {
	return &userDirectory{api: api}
}

func (d *userDirectory) cachedUsers() ([]slack.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.users != nil && time.Since(d.fetchedAt) < userCacheTTL {
		return d.users, nil
	}
	users, err := d.api.GetUsers()
	if err != nil {
		return nil, err
	}
	d.users = users
	d.fetchedAt = time.Now()
	return users, nil
}

func (d *userDirectory) resolve(identifiers []string) ([]string, []string, error) {
	var ids []string
	var names []string
	for _, raw := range identifiers {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if isLikelySlackID(val) {
			ids = append(ids, val)
		} else {
			names = append(names, strings.TrimPrefix(val, "@"))
		}
	}

	if len(names) == 0 {
		log.Printf("resolve users: ids=%d names=0", len(ids))
		return uniqueStrings(ids), nil, nil
	}

	users, err := d.cachedUsers()
	if err != nil {
		log.Printf("resolve users: get users error: %v", err)
		return uniqueStrings(ids), names, err
	}

	nameToID := make(map[string]string)
	for _, user := range users {
		for _, n := range []string{user.Name, user.RealName, user.Profile.DisplayName} {
			n = strings.ToLower(strings.TrimSpace(n))
			if n == "" {
				continue
			}
			if _, exists := nameToID[n]; !exists {
				nameToID[n] = user.ID
			}
		}
	}

	var unresolved []string
	for _, name := range names {
		if id, ok := nameToID[strings.ToLower(name)]; ok {
			ids = append(ids, id)
		} else {
			unresolved = append(unresolved, name)
		}
	}

	log.Printf("resolve users: ids=%d unresolved=%d", len(ids), len(unresolved))
	return uniqueStrings(ids), unresolved, nil
}

func isLikelySlackID(val string) bool {
	if len(val) < 9 {
		return false
	}
	for i, r := range val {
		if i == 0 {
			if r != 'U' && r != 'W' {
				return false
			}
			continue
		}
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func uniqueStrings(vals []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range vals {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
