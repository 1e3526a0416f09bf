// Package api exposes plans and reviews over HTTP. Handlers decode and
// validate requests, call the plan and scheduler services (retrying
// transient store failures), and render results or tagged errors as JSON.
package api
