// Package routes holds the HTTP routing table and the handlers behind it.
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"mixchat/internal/gateway/handlers"
)

// Route names the controller action serving a path.
type Route struct {
	Path       string
	Controller string
	Action     string
}

// Name returns the "Controller@action" form used to look up handlers.
func (r Route) Name() string {
	return r.Controller + "@" + r.Action
}

var table = []Route{
	{"/", "Main", "main"},
	{"/api/authorize", "Auth", "authorize"},
	{"/api/account/register", "Auth", "register"},
	{"/api/account/getinfo", "Profile", "getInfo"},
	{"/api/account/restore", "Auth", "restore"},
	{"/api/account/reset_password", "Auth", "reset_password"},
	{"/api/account/change_pass", "Settings", "change_pass"},
	{"/api/account/change_name", "Settings", "change_name"},
	{"/api/account/change_avatar", "Settings", "change_avatar"},
	{"/api/account/change_bio", "Profile", "bioEdit"},
	{"/api/users/profile", "Profile", "profile"},

	{"/api/albums/all", "Albums", "all"},

	{"/api/search", "Search", "all"},

	{"/api/friends/add", "Friends", "add"},
	{"/api/friends/delete", "Friends", "delete"},
	{"/api/friends/all", "Friends", "all"},
	{"/api/friends/search", "Friends", "search"},
	{"/api/friends/requests", "Friends", "requests"},
	{"/api/friends/online", "Friends", "online"},
	{"/api/friends/common", "Friends", "common"},

	{"/api/messages/send", "Messages", "send"},
	{"/api/messages/read", "Messages", "read"},
	{"/api/messages/typograf", "Messages", "typograf"},
	{"/api/messages/delete", "Messages", "delete"},

	{"/api/feed/all", "Newsfeed", "all"},

	{"/api/notifications/get", "Notifications", "get"},
	{"/api/notifications/all", "Notifications", "all"},
	{"/api/notifications/test", "Notifications", "addTest"},

	{"/api/wall/add", "Wall", "add"},
	{"/api/wall/remove", "Wall", "remove"},
	{"/api/wall/comment/add", "Wall", "addComment"},
	{"/api/wall/comment/remove", "Wall", "removeComment"},
	{"/api/wall/like", "Wall", "like"},
	{"/api/wall/unlike", "Wall", "unlike"},
	{"/api/wall/all", "Wall", "all"},
}

var byPath = func() map[string]Route {
	m := make(map[string]Route, len(table))
	for _, r := range table {
		m[r.Path] = r
	}
	return m
}()

// Table returns a copy of the routing table in declaration order.
func Table() []Route {
	out := make([]Route, len(table))
	copy(out, table)
	return out
}

// Resolve looks up the route for an exact path.
func Resolve(path string) (Route, bool) {
	r, ok := byPath[path]
	return r, ok
}

// Handlers maps route names to their implementation.
type Handlers map[string]http.HandlerFunc

// Register binds every table path on router. Paths without a handler answer
// 501; paths outside the table answer 404.
func Register(router *mux.Router, h Handlers) {
	for _, route := range table {
		fn, ok := h[route.Name()]
		if !ok {
			fn = notImplemented(route)
		}
		router.HandleFunc(route.Path, fn).Name(route.Name())
	}
	router.NotFoundHandler = http.HandlerFunc(handlers.NotFound)
}

func notImplemented(route Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handlers.SendError(w, http.StatusNotImplemented, handlers.ErrCodeNotImplemented, route.Name()+" is not available")
	}
}
