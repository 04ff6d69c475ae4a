package chat

import (
	"fmt"
	"strings"

	"chatdigest/internal/util"
)

// ResolveUserIDs maps recipients to member ids. A recipient is either a
// member id or a username (with or without "@", any case). Unknown names
// are an error listing all of them.
func ResolveUserIDs(members []Member, recipients []string) ([]string, error) {
	byID := make(map[string]bool, len(members))
	byName := make(map[string]string, len(members))
	for _, m := range members {
		byID[m.ID] = true
		if h := util.NormalizeHandle(m.Username); h != "" {
			byName[h] = m.ID
		}
		if h := util.NormalizeHandle(m.Email); h != "" {
			byName[h] = m.ID
		}
	}

	var ids, unknown []string
	seen := make(map[string]bool)
	for _, r := range recipients {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		id := ""
		switch {
		case byID[r]:
			id = r
		case byName[util.NormalizeHandle(r)] != "":
			id = byName[util.NormalizeHandle(r)]
		default:
			unknown = append(unknown, r)
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("chat: unknown recipients: %s", strings.Join(unknown, ", "))
	}
	return ids, nil
}
