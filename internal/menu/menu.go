// Package menu builds the sidebar navigation tree for a role.
package menu

import (
	"github.com/agrisense-dev/agrisense/internal/session"
)

// Kind distinguishes groups from leaf items.
type Kind string

const (
	KindGroup Kind = "group"
	KindItem  Kind = "item"
)

// Visibility is the least privileged role level an entry is shown to.
// Levels are ordered, so a role sees every entry at or below its own level.
type Visibility uint8

const (
	Always Visibility = iota
	SignedIn
	AdminOnly
)

// visibleTo is the only input an entry's visibility depends on.
func (v Visibility) visibleTo(r session.Role) bool {
	return v <= levelOf(r)
}

func levelOf(r session.Role) Visibility {
	switch r {
	case session.RoleAdmin:
		return AdminOnly
	case session.RoleUser:
		return SignedIn
	case session.RoleNone:
		return Always
	default:
		return Always
	}
}

// Entry is one node of the navigation tree.
type Entry struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Kind     Kind       `json:"type"`
	URL      string     `json:"url,omitempty"`
	Icon     string     `json:"icon,omitempty"`
	External bool       `json:"external,omitempty"`
	Children []Entry    `json:"children,omitempty"`
	visible  Visibility
}

func group(id, title string, children ...Entry) Entry {
	return Entry{ID: id, Title: title, Kind: KindGroup, Icon: "icon-navigation", Children: children}
}

func item(id, title, url, icon string, v Visibility) Entry {
	return Entry{ID: id, Title: title, Kind: KindItem, URL: url, Icon: icon, visible: v}
}

func external(id, title, url, icon string) Entry {
	e := item(id, title, url, icon, Always)
	e.External = true
	return e
}

// template is never handed out directly; Build returns filtered copies.
var template = []Entry{
	group("dashboard", "Dashboard",
		item("admin-dashboard", "Admin Dashboard", "/dashboard/admin-dashboard", "dashboard", AdminOnly),
		item("user-dashboard", "My Dashboard", "/dashboard/user-dashboard", "dashboard", SignedIn),
	),
	group("utilities", "Services",
		item("monitoring", "Monitoring", "/monitoring", "user", Always),
		item("users", "Users", "/users", "user", AdminOnly),
		item("analytics", "Analytics", "/analytics", "line-chart", Always),
		item("device-management", "Device Management", "/device-management", "rocket", AdminOnly),
		item("my-devices", "My Devices", "/my-devices", "rocket", SignedIn),
		external("ant-icons", "Ant Icons", "https://ant.design/components/icon", "ant-design"),
	),
	group("other", "Other",
		item("sample-page", "Sample Page", "/sample-page", "chrome", Always),
		external("document", "Document", "https://codedthemes.gitbook.io/mantis-angular/", "question"),
	),
}

// Build returns the navigation tree visible to r, in display order.
// Groups left without visible children are omitted.
func Build(r session.Role) []Entry {
	return filter(template, r)
}

func filter(entries []Entry, r session.Role) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.visible.visibleTo(r) {
			continue
		}

		if e.Kind == KindGroup {
			children := filter(e.Children, r)
			if len(children) == 0 {
				continue
			}
			e.Children = children
		} else {
			e.Children = nil
		}

		out = append(out, e)
	}
	return out
}

// Flatten lists the items of a tree depth-first, in display order.
func Flatten(entries []Entry) []Entry {
	var items []Entry
	for _, e := range entries {
		if e.Kind == KindItem {
			items = append(items, e)
			continue
		}
		items = append(items, Flatten(e.Children)...)
	}
	return items
}

// Titles returns the titles of the visible items for r.
func Titles(r session.Role) []string {
	items := Flatten(Build(r))
	titles := make([]string, len(items))
	for i, e := range items {
		titles[i] = e.Title
	}
	return titles
}
