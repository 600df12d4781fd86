package command

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelanx/plugintemplate/internal/chat"
	"github.com/codelanx/plugintemplate/internal/descriptor"
	"github.com/codelanx/plugintemplate/internal/update"
)

type sender struct {
	perms map[string]bool
	op    bool
	msgs  []string
}

func (s *sender) Name() string { return "tester" }
func (s *sender) SendMessage(msg string) { s.msgs = append(s.msgs, chat.Strip(msg)) }
func (s *sender) HasPermission(node string) bool { return s.op || s.perms[node] }

type stub struct {
	name string
	perm string
	ok   bool
	args []string
}

func (c *stub) Name() string { return c.name }
func (c *stub) Usage() string { return "/<command> " + c.name + " <arg>" }
func (c *stub) Description() string { return "Does " + c.name }
func (c *stub) Permission() string { return c.perm }

func (c *stub) Execute(_ Sender, args []string) bool {
	c.args = args
	return c.ok
}

func TestExecuteRoutesSubCommand(t *testing.T) {
	h := NewHandler("pt")
	c := &stub{name: "foo", ok: true}
	require.NoError(t, h.Register(c))

	s := &sender{}
	assert.True(t, h.Execute(s, []string{"FOO", "a", "b"}))
	assert.Equal(t, []string{"a", "b"}, c.args)
	assert.Empty(t, s.msgs)
}

func TestExecuteDefaultsToHelp(t *testing.T) {
	h := NewHandler("pt")
	require.NoError(t, h.Register(Help(h)))

	s := &sender{}
	assert.True(t, h.Execute(s, nil))
	require.NotEmpty(t, s.msgs)
	assert.Equal(t, "Help (page 1/1)", s.msgs[0])
	assert.Equal(t, "/pt help [page] - Shows the plugin's commands", s.msgs[1])
}

func TestExecuteUnknown(t *testing.T) {
	h := NewHandler("pt")
	s := &sender{}
	assert.False(t, h.Execute(s, []string{"nope"}))
	assert.Equal(t, []string{"Unknown command: nope"}, s.msgs)
}

func TestExecuteFailurePrintsUsage(t *testing.T) {
	h := NewHandler("pt")
	require.NoError(t, h.Register(&stub{name: "foo"}))

	s := &sender{}
	assert.False(t, h.Execute(s, []string{"foo"}))
	assert.Equal(t, []string{"Usage: /pt foo <arg>", "Does foo"}, s.msgs)
}

func TestExecuteChecksPermission(t *testing.T) {
	h := NewHandler("pt")
	c := &stub{name: "secret", perm: "plugintemplate.secret", ok: true}
	require.NoError(t, h.Register(c))

	s := &sender{}
	assert.False(t, h.Execute(s, []string{"secret"}))
	assert.Equal(t, []string{MsgNoPermission}, s.msgs)
	assert.Nil(t, c.args)

	s = &sender{perms: map[string]bool{"plugintemplate.secret": true}}
	assert.True(t, h.Execute(s, []string{"secret"}))
}

func TestRegisterDuplicate(t *testing.T) {
	h := NewHandler("pt")
	require.NoError(t, h.Register(&stub{name: "foo"}))
	err := h.Register(&stub{name: "Foo"})
	require.ErrorIs(t, err, ErrCommandRegistered)
}

func helpHandler(t *testing.T, n int) *Handler {
	t.Helper()
	h := NewHandler("pt")
	require.NoError(t, h.Register(Help(h)))
	for i := 0; i < n; i++ {
		require.NoError(t, h.Register(&stub{name: fmt.Sprintf("cmd%02d", i), ok: true}))
	}
	return h
}

func TestHelpPagination(t *testing.T) {
	// help plus 11 commands: three pages
	h := helpHandler(t, 11)

	s := &sender{}
	require.True(t, h.Execute(s, []string{"help", "2"}))
	require.Len(t, s.msgs, 1+HelpPageSize)
	assert.Equal(t, "Help (page 2/3)", s.msgs[0])
	assert.Equal(t, "/pt cmd05 <arg> - Does cmd05", s.msgs[1])
	assert.Equal(t, "/pt cmd09 <arg> - Does cmd09", s.msgs[5])

	s = &sender{}
	require.True(t, h.Execute(s, []string{"help", "3"}))
	assert.Equal(t, []string{
		"Help (page 3/3)",
		"/pt cmd10 <arg> - Does cmd10",
		"/pt help [page] - Shows the plugin's commands",
	}, s.msgs)
}

func TestHelpSorted(t *testing.T) {
	h := NewHandler("pt")
	for _, n := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, h.Register(&stub{name: n}))
	}
	var names []string
	for _, c := range h.Commands() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestHelpPageBeyondRangeShowsLast(t *testing.T) {
	h := helpHandler(t, 11)
	s := &sender{}
	require.True(t, h.Execute(s, []string{"help", "99"}))
	assert.Equal(t, "Help (page 3/3)", s.msgs[0])
}

func TestHelpNonNumericPage(t *testing.T) {
	h := helpHandler(t, 1)
	s := &sender{}
	assert.False(t, h.Execute(s, []string{"help", "abc"}))
	assert.Equal(t, []string{"Usage: /pt help [page]", "Shows the plugin's commands"}, s.msgs)
}

func TestVersion(t *testing.T) {
	d := descriptor.Builtin("1.4.2")
	h := NewHandler("pt")
	require.NoError(t, h.Register(Version(d)))

	s := &sender{}
	require.True(t, h.Execute(s, []string{"version"}))
	assert.Equal(t, []string{"PluginTemplate v1.4.2 by 1Rogue", "https://www.codelanx.com"}, s.msgs)
}

type status struct {
	res update.Result
	rel *update.Release
}

func (s status) Status() update.Result { return s.res }

func (s status) Latest() (update.Release, bool) {
	if s.rel == nil {
		return update.Release{}, false
	}
	return *s.rel, true
}

func TestUpdateStatus(t *testing.T) {
	var src StatusSource
	h := NewHandler("pt")
	require.NoError(t, h.Register(UpdateStatus(func() StatusSource { return src })))

	s := &sender{}
	require.True(t, h.Execute(s, []string{"update"}))
	assert.Equal(t, []string{"Update checking is disabled."}, s.msgs)

	src = status{res: update.Incomplete}
	s = &sender{}
	require.True(t, h.Execute(s, []string{"update"}))
	assert.Equal(t, []string{update.Incomplete.Message()}, s.msgs)

	src = status{res: update.UpdateAvailable, rel: &update.Release{Name: "PluginTemplate v1.5.0"}}
	s = &sender{}
	require.True(t, h.Execute(s, []string{"update"}))
	assert.Equal(t, []string{"An update is available!", "Latest release: PluginTemplate v1.5.0"}, s.msgs)
}

func TestUpdateStatusColour(t *testing.T) {
	var raw []string
	h := NewHandler("pt")
	require.NoError(t, h.Register(UpdateStatus(func() StatusSource { return status{res: update.ErrorBadID} })))
	h.Execute(rawSender(func(m string) { raw = append(raw, m) }), []string{"update"})
	require.Len(t, raw, 1)
	assert.Equal(t, chat.Colorize(chat.Red+update.ErrorBadID.Message()), raw[0])
}

type rawSender func(string)

func (rawSender) Name() string { return "raw" }
func (f rawSender) SendMessage(msg string) { f(msg) }
func (rawSender) HasPermission(string) bool { return true }

func TestReload(t *testing.T) {
	calls := 0
	var fail error
	h := NewHandler("pt")
	require.NoError(t, h.Register(Reload("plugintemplate.reload", func() error {
		calls++
		return fail
	})))

	s := &sender{}
	assert.False(t, h.Execute(s, []string{"reload"}))
	assert.Equal(t, 0, calls)

	s = &sender{op: true}
	require.True(t, h.Execute(s, []string{"reload"}))
	assert.Equal(t, []string{"Configuration reloaded."}, s.msgs)

	fail = errors.New("bad yaml")
	s = &sender{op: true}
	require.True(t, h.Execute(s, []string{"reload"}))
	assert.Equal(t, []string{"Reload failed: bad yaml"}, s.msgs)
	assert.Equal(t, 2, calls)
}

func TestOnExecuteHook(t *testing.T) {
	h := NewHandler("pt")
	require.NoError(t, h.Register(&stub{name: "good", ok: true}))
	require.NoError(t, h.Register(&stub{name: "bad"}))

	type call struct {
		name string
		args []string
		ok   bool
	}
	var calls []call
	h.OnExecute(func(_ Sender, name string, args []string, ok bool) {
		calls = append(calls, call{name, args, ok})
	})

	h.Execute(&sender{}, []string{"good", "x"})
	h.Execute(&sender{}, []string{"bad"})
	h.Execute(&sender{}, []string{"missing"})

	require.Len(t, calls, 2)
	assert.Equal(t, call{"good", []string{"x"}, true}, calls[0])
	assert.Equal(t, "bad", calls[1].name)
	assert.False(t, calls[1].ok)
}
