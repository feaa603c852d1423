// Package zulip implements the Zulip side of the reconciler: user
// groups mirroring desired teams, plus the message posting used by
// the confirmation gate's review channel.
package zulip

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rust-lang/sync-team/internal/httpclient"
)

// DefaultBaseURL is the production Zulip instance.
const DefaultBaseURL = "https://rust-lang.zulipchat.com/api/v1"

// API is the Zulip client. All writes are form-encoded POSTs
// authenticated with the bot's basic credentials.
type API struct {
	client *httpclient.Client
	log    *slog.Logger
}

// NewAPI builds a Zulip client for the given bot credentials.
func NewAPI(baseURL, username, token, userAgent string, log *slog.Logger, opts ...httpclient.Option) *API {
	if log == nil {
		log = slog.Default()
	}
	client := httpclient.New(baseURL, userAgent, httpclient.BasicAuth(username, token), opts...)
	return &API{client: client, log: log}
}

// User is a Zulip account. Email is the delivery email and may be
// empty for users who hide it.
type User struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"delivery_email"`
}

// UserGroup is a Zulip user group and its member ids.
type UserGroup struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Members []int64 `json:"members"`
}

// Users returns all users of the instance.
func (a *API) Users() ([]User, error) {
	var resp struct {
		Members []User `json:"members"`
	}
	if err := a.client.Do(http.MethodGet, "users", nil, &resp); err != nil {
		return nil, fmt.Errorf("zulip users: %w", err)
	}
	return resp.Members, nil
}

// UserGroups returns all user groups of the instance.
func (a *API) UserGroups() ([]UserGroup, error) {
	var resp struct {
		UserGroups []UserGroup `json:"user_groups"`
	}
	if err := a.client.Do(http.MethodGet, "user_groups", nil, &resp); err != nil {
		return nil, fmt.Errorf("zulip user groups: %w", err)
	}
	return resp.UserGroups, nil
}

// CreateUserGroup creates a user group. Creating a group that already
// exists is a no-op, so replaying a create converges.
func (a *API) CreateUserGroup(name, description string, memberIDs []int64) error {
	form := map[string]string{
		"name":        name,
		"description": description,
		"members":     serializeIDs(memberIDs),
	}
	resp, err := a.client.PostForm("user_groups/create", form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var payload struct {
			Msg string `json:"msg"`
		}
		if jsonErr := json.Unmarshal(body, &payload); jsonErr == nil &&
			strings.Contains(payload.Msg, "already exists") {
			a.log.Debug("zulip user group already existed", "group", name)
			return nil
		}
		return fmt.Errorf("zulip: create user group %q: %s", name, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("zulip: create user group %q: status %d: %s", name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// GroupByName fetches a group id by name after a create, since the
// create endpoint does not return the new id.
func (a *API) GroupByName(name string) (*UserGroup, error) {
	groups, err := a.UserGroups()
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Name == name {
			return &g, nil
		}
	}
	return nil, nil
}

// UpdateUserGroupMembers adds and removes group members. The platform
// rejects some membership edits with a 400 (deactivated accounts);
// those are logged and treated as settled rather than failing the run.
func (a *API) UpdateUserGroupMembers(groupID int64, add, remove []int64) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}
	form := map[string]string{
		"add":    serializeIDs(add),
		"delete": serializeIDs(remove),
	}
	resp, err := a.client.PostForm(fmt.Sprintf("user_groups/%d/members", groupID), form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		a.log.Warn("zulip rejected group membership update",
			"group", groupID, "body", strings.TrimSpace(string(body)))
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("zulip: update group %d members: status %d: %s", groupID, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// PostMessage posts to a stream topic. Used by the confirmation gate
// to publish proposals and outcomes.
func (a *API) PostMessage(stream, topic, content string) error {
	form := map[string]string{
		"type":    "stream",
		"to":      stream,
		"topic":   topic,
		"content": content,
	}
	resp, err := a.client.PostForm("messages", form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("zulip: post message to %s/%s: status %d: %s", stream, topic, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// serializeIDs renders ids as the JSON array string the form API
// expects, e.g. "[1,2,3]".
func serializeIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
