package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/blockscan/internal/pytree"
)

func call(object, name string, attribute bool) *pytree.Node {
	return &pytree.Node{
		Kind:   pytree.KindCall,
		Callee: pytree.Callee{Name: name, Object: object, Attribute: attribute},
	}
}

func matching(r *Registry, n *pytree.Node) []string {
	var ids []string
	for _, rule := range r.Rules() {
		if rule.Matches(n) {
			ids = append(ids, rule.ID())
		}
	}
	return ids
}

func TestDefaultRulesMatch(t *testing.T) {
	reg := Default()

	tests := []struct {
		name string
		node *pytree.Node
		want []string
	}{
		{"requests.get", call("requests", "get", true), []string{RuleRequestsGetID}},
		{"requests.post", call("requests", "post", true), []string{RuleRequestsPostID}},
		{"requests.put", call("requests", "put", true), []string{RuleRequestsPutID}},
		{"requests.delete", call("requests", "delete", true), []string{RuleRequestsDeleteID}},
		{"time.sleep", call("time", "sleep", true), []string{RuleTimeSleepID}},
		{"open", call("", "open", false), []string{RuleSyncOpenID}},
		{"subprocess.run", call("subprocess", "run", true), []string{RuleSubprocessRunID}},
		{"subprocess.call", call("subprocess", "call", true), []string{RuleSubprocessCallID}},
		{"file.read", call("f", "read", true), []string{RuleSyncFileReadWriteID}},
		{"chained write", call("", "write", true), []string{RuleSyncFileReadWriteID}},
		{"readlines", call("fh", "readlines", true), []string{RuleSyncFileReadWriteID}},
		{"asyncio.sleep", call("asyncio", "sleep", true), nil},
		{"session.get", call("session", "get", true), nil},
		{"bare sleep", call("", "sleep", false), nil},
		{"os.open", call("os", "open", true), nil},
		{"bare read", call("", "read", false), nil},
		{"not a call", &pytree.Node{Kind: pytree.KindOther, Callee: pytree.Callee{Name: "open"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matching(reg, tt.node))
		})
	}
}

func TestDefaultRegistryOrderAndMetadata(t *testing.T) {
	reg := Default()
	assert.Equal(t, []string{
		"ASYNC001", "ASYNC002", "ASYNC003", "ASYNC004", "ASYNC005",
		"ASYNC006", "ASYNC007", "ASYNC008", "ASYNC009",
	}, reg.IDs())

	for _, rule := range reg.Rules() {
		assert.NotEmpty(t, rule.Description(), rule.ID())
		assert.NotEmpty(t, rule.Fix(), rule.ID())
	}

	rule, ok := reg.Lookup(RuleTimeSleepID)
	require.True(t, ok)
	assert.Equal(t, "time.sleep() blocks the event loop", rule.Description())
	assert.Equal(t, "Use 'await asyncio.sleep(seconds)' instead", rule.Fix())

	_, ok = reg.Lookup("ASYNC999")
	assert.False(t, ok)
}

func TestRulesReturnsCopy(t *testing.T) {
	reg := Default()
	rules := reg.Rules()
	rules[0] = nil
	assert.NotNil(t, reg.Rules()[0])
}

func TestNewRegistryRejectsBadIDs(t *testing.T) {
	_, err := NewRegistry(NewCallRule("", "d", "f", "open"))
	assert.ErrorIs(t, err, ErrEmptyRuleID)

	_, err = NewRegistry(
		NewCallRule("X1", "d", "f", "open"),
		NewCallRule("X1", "d", "f", "print"),
	)
	assert.ErrorIs(t, err, ErrDuplicateRule)
}

func TestTwoRulesMatchingSameNode(t *testing.T) {
	reg, err := NewRegistry(
		NewAttributeCallRule("A", "a", "fix a", "requests", "get"),
		NewMethodRule("B", "b", "fix b", "get"),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, matching(reg, call("requests", "get", true)))
}

func TestFilter(t *testing.T) {
	reg := Default()

	tests := []struct {
		name     string
		selected []string
		disabled []string
		want     []string
		wantErr  error
	}{
		{name: "no filter", want: reg.IDs()},
		{name: "select", selected: []string{"async005", " ASYNC001 "}, want: []string{"ASYNC001", "ASYNC005"}},
		{
			name:     "disable",
			disabled: []string{"ASYNC009"},
			want:     []string{"ASYNC001", "ASYNC002", "ASYNC003", "ASYNC004", "ASYNC005", "ASYNC006", "ASYNC007", "ASYNC008"},
		},
		{name: "select and disable", selected: []string{"ASYNC001", "ASYNC002"}, disabled: []string{"ASYNC002"}, want: []string{"ASYNC001"}},
		{name: "empty ids ignored", selected: []string{""}, want: reg.IDs()},
		{name: "unknown select", selected: []string{"NOPE"}, wantErr: ErrUnknownRule},
		{name: "unknown disable", disabled: []string{"ASYNC010"}, wantErr: ErrUnknownRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.Filter(tt.selected, tt.disabled)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.IDs())
		})
	}
}
