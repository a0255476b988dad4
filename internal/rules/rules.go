// Package rules defines the blocking-call rules and the registry that holds them.
//
// Rules match purely on syntax: a call to `requests.get` is flagged whatever
// `requests` is bound to. Import aliases and shadowed names are not resolved.
package rules

import (
	"slices"

	"github.com/scan-io-git/blockscan/internal/pytree"
)

// Rule IDs of the default rule set.
const (
	RuleRequestsGetID       = "ASYNC001"
	RuleRequestsPostID      = "ASYNC002"
	RuleRequestsPutID       = "ASYNC003"
	RuleRequestsDeleteID    = "ASYNC004"
	RuleTimeSleepID         = "ASYNC005"
	RuleSyncOpenID          = "ASYNC006"
	RuleSubprocessRunID     = "ASYNC007"
	RuleSubprocessCallID    = "ASYNC008"
	RuleSyncFileReadWriteID = "ASYNC009"
)

// Rule identifies one class of blocking call.
// Matches must be pure: no side effects and no dependence on tree position.
type Rule interface {
	ID() string
	Description() string
	Fix() string
	Matches(n *pytree.Node) bool
}

type meta struct {
	id          string
	description string
	fix         string
}

func (m meta) ID() string          { return m.id }
func (m meta) Description() string { return m.description }
func (m meta) Fix() string         { return m.fix }

// callRule matches `name(...)` when object is empty, `object.name(...)` otherwise.
type callRule struct {
	meta
	object string
	name   string
}

func (r callRule) Matches(n *pytree.Node) bool {
	if n.Kind != pytree.KindCall {
		return false
	}
	c := n.Callee
	if r.object == "" {
		return !c.Attribute && c.Name == r.name
	}
	return c.Attribute && c.Object == r.object && c.Name == r.name
}

// methodRule matches `<anything>.name(...)` for any of the given names.
type methodRule struct {
	meta
	names []string
}

func (r methodRule) Matches(n *pytree.Node) bool {
	return n.Kind == pytree.KindCall && n.Callee.Attribute && slices.Contains(r.names, n.Callee.Name)
}

// NewCallRule builds a rule matching a call to a bare function name.
func NewCallRule(id, description, fix, name string) Rule {
	return callRule{meta: meta{id, description, fix}, name: name}
}

// NewAttributeCallRule builds a rule matching `object.name(...)` where object
// is a bare identifier.
func NewAttributeCallRule(id, description, fix, object, name string) Rule {
	return callRule{meta: meta{id, description, fix}, object: object, name: name}
}

// NewMethodRule builds a rule matching a method call by name on any receiver.
func NewMethodRule(id, description, fix string, names ...string) Rule {
	return methodRule{meta: meta{id, description, fix}, names: append([]string(nil), names...)}
}

func defaultRules() []Rule {
	return []Rule{
		NewAttributeCallRule(RuleRequestsGetID,
			"requests.get() blocks the event loop",
			"Use aiohttp.ClientSession().get() or httpx.AsyncClient().get()",
			"requests", "get"),
		NewAttributeCallRule(RuleRequestsPostID,
			"requests.post() blocks the event loop",
			"Use aiohttp.ClientSession().post() or httpx.AsyncClient().post()",
			"requests", "post"),
		NewAttributeCallRule(RuleRequestsPutID,
			"requests.put() blocks the event loop",
			"Use aiohttp.ClientSession().put() or httpx.AsyncClient().put()",
			"requests", "put"),
		NewAttributeCallRule(RuleRequestsDeleteID,
			"requests.delete() blocks the event loop",
			"Use aiohttp.ClientSession().delete() or httpx.AsyncClient().delete()",
			"requests", "delete"),
		NewAttributeCallRule(RuleTimeSleepID,
			"time.sleep() blocks the event loop",
			"Use 'await asyncio.sleep(seconds)' instead",
			"time", "sleep"),
		NewCallRule(RuleSyncOpenID,
			"open() is a synchronous file operation",
			"Use 'async with aiofiles.open(...)' from the aiofiles package",
			"open"),
		NewAttributeCallRule(RuleSubprocessRunID,
			"subprocess.run() blocks the event loop",
			"Use 'await asyncio.create_subprocess_exec()' or asyncio.create_subprocess_shell()",
			"subprocess", "run"),
		NewAttributeCallRule(RuleSubprocessCallID,
			"subprocess.call() blocks the event loop",
			"Use 'await asyncio.create_subprocess_exec()' instead",
			"subprocess", "call"),
		NewMethodRule(RuleSyncFileReadWriteID,
			".read()/.write()/.readlines() on a synchronous file handle",
			"Open the file with aiofiles and use 'await file.read()' / 'await file.write()'",
			"read", "write", "readlines"),
	}
}
