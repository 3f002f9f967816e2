package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/event"
	"planner/internal/ics"
	"planner/internal/store"
)

const testConfig = `
timezone: America/Los_Angeles
log_level: error
calendar_name: Team events
users:
  - id: U1234
    name: user0
    email: foo@bar.com
`

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "planner.yaml")
	body := testConfig + "data_path: " + filepath.Join(dir, "planner.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"planner", "--config", cfg}, args...))
	return out.String(), err
}

func mustRun(t *testing.T, cfg string, args ...string) string {
	t.Helper()
	out, err := run(t, cfg, args...)
	require.NoError(t, err, "planner %s", strings.Join(args, " "))
	return out
}

func createWizardPeople(t *testing.T, cfg string) string {
	t.Helper()
	return mustRun(t, cfg, "--as", "U1234", "create", "--id", "zzz999", "--name", "Wizard People",
		"--propose", "2017-11-19", "--propose", "2017-11-25")
}

func TestCreateAndList(t *testing.T) {
	cfg := setup(t)

	out := createWizardPeople(t, cfg)
	assert.Contains(t, out, `The event "Wizard People" has been created with id *ZZZ999*.`)
	assert.Contains(t, out, "`ZZZ999` _Wizard People_ "+
		"<!date^1511078400^{date}|19 November 2017>, <!date^1511596800^{date}|25 November 2017>")

	out = mustRun(t, cfg, "list", "--all")
	assert.True(t, strings.HasPrefix(out, "_Showing 1 of 1 event_\n`ZZZ999`"), out)

	out = mustRun(t, cfg, "list", "--name", "nothing like it")
	assert.Equal(t, "_Showing 0 of 1 event_\n", out)

	_, err := run(t, cfg, "list", "--all", "--finalized")
	assert.Error(t, err)
}

func TestCreateWithBadDateCreatesNothing(t *testing.T) {
	cfg := setup(t)

	_, err := run(t, cfg, "create", "--id", "BAD", "--name", "Bad", "--propose", "2017-11-19", "--propose", "soon")
	var invalid *event.InvalidTimestampError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "soon", invalid.Input)

	out := mustRun(t, cfg, "list", "--all")
	assert.Equal(t, "_Showing 0 of 0 events_\n", out)
}

func TestCreateDuplicateID(t *testing.T) {
	cfg := setup(t)
	createWizardPeople(t, cfg)

	_, err := run(t, cfg, "create", "--id", "ZZZ999", "--name", "Again")
	var dup *event.DuplicateEventError
	assert.ErrorAs(t, err, &dup)
}

func TestCreateAt(t *testing.T) {
	cfg := setup(t)
	out := mustRun(t, cfg, "create", "--id", "AT1", "--name", "Dinner", "--at", "2017-11-25")
	assert.Contains(t, out, "`AT1` Dinner <!date^1511596800^{date}|25 November 2017>")

	_, err := run(t, cfg, "create", "--name", "Both", "--at", "2017-11-25", "--propose", "2017-11-26")
	assert.Error(t, err)
}

func TestVotingAndFinalizing(t *testing.T) {
	cfg := setup(t)
	createWizardPeople(t, cfg)

	_, err := run(t, cfg, "accept", "ZZZ999", "0")
	assert.ErrorIs(t, err, errNoActor)

	out := mustRun(t, cfg, "--as", "frey", "accept", "zzz999", "0")
	assert.Contains(t, out, `frey would be able to attend "Wizard People" on *19 November 2017*`)

	out = mustRun(t, cfg, "show", "ZZZ999")
	assert.Contains(t, out, "*[0]")
	assert.Contains(t, out, "(2 yes: user0, frey)")
	assert.Contains(t, out, "invited: user0, frey")

	_, err = run(t, cfg, "accept", "--for", "frey", "ZZZ999", "7")
	var invalidProposal *event.InvalidProposalError
	assert.ErrorAs(t, err, &invalidProposal)

	_, err = run(t, cfg, "finalize", "ZZZ999")
	var multiple *event.MultipleProposalsError
	require.ErrorAs(t, err, &multiple)
	assert.Equal(t, 2, multiple.ProposalCount)

	out = mustRun(t, cfg, "finalize", "ZZZ999", "1")
	assert.Equal(t, "`ZZZ999` Wizard People <!date^1511596800^{date}|25 November 2017>\n", out)

	_, err = run(t, cfg, "propose", "ZZZ999", "2017-12-01")
	var finalized *event.FinalizedEventError
	assert.ErrorAs(t, err, &finalized)

	out = mustRun(t, cfg, "--as", "frey", "confirm", "ZZZ999")
	assert.Contains(t, out, "frey will be able to attend")

	mustRun(t, cfg, "unfinalize", "ZZZ999")
	_, err = run(t, cfg, "--as", "frey", "decline", "ZZZ999")
	var unfinalized *event.UnfinalizedEventError
	assert.ErrorAs(t, err, &unfinalized)
}

func TestEditCommands(t *testing.T) {
	cfg := setup(t)
	createWizardPeople(t, cfg)

	out := mustRun(t, cfg, "rename", "ZZZ999", "Wizard People, Dear Reader")
	assert.Contains(t, out, "_Wizard People, Dear Reader_")

	out = mustRun(t, cfg, "unpropose", "ZZZ999", "0")
	assert.Equal(t, "`ZZZ999` _Wizard People, Dear Reader_ <!date^1511596800^{date}|25 November 2017>\n", out)

	_, err := run(t, cfg, "unpropose", "ZZZ999", "0")
	var invalidProposal *event.InvalidProposalError
	assert.ErrorAs(t, err, &invalidProposal)

	out = mustRun(t, cfg, "invite", "ZZZ999", "@U5678")
	assert.Contains(t, out, "`!U5678` has been invited")
	out = mustRun(t, cfg, "uninvite", "ZZZ999", "U1234")
	assert.Contains(t, out, "user0 is no longer invited")

	out = mustRun(t, cfg, "show", "ZZZ999")
	assert.Contains(t, out, "(0 yes)")
	assert.Contains(t, out, "invited: `!U5678`")

	out = mustRun(t, cfg, "delete", "zzz999")
	assert.Equal(t, "Event \"Wizard People, Dear Reader\" has been deleted.\n", out)

	_, err = run(t, cfg, "show", "ZZZ999")
	var invalidEvent *event.InvalidEventError
	require.ErrorAs(t, err, &invalidEvent)
	assert.Equal(t, "There is no event with the ID ZZZ999.", event.Reply(err))
}

func TestExport(t *testing.T) {
	cfg := setup(t)
	createWizardPeople(t, cfg)

	out := mustRun(t, cfg, "export")
	entries, err := ics.Read(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ZZZ999", entries[0].EventID)
	assert.Equal(t, "TENTATIVE", entries[0].Status)
	assert.Equal(t, "foo@bar.com", entries[0].Attendees[0].Email)
}

func TestEmail(t *testing.T) {
	cfg := setup(t)

	out := mustRun(t, cfg, "--as", "U1234", "email")
	assert.Equal(t, ":slack: :star: _*foo@bar.com*_\n", out)

	out = mustRun(t, cfg, "--as", "U1234", "email", "--default", "other@example.com")
	assert.Equal(t, ":slack: _foo@bar.com_, :star: *other@example.com*\n", out)

	_, err := run(t, cfg, "--as", "U1234", "email", "--delete", "foo@bar.com")
	var emailErr *store.EmailError
	require.ErrorAs(t, err, &emailErr)
	assert.NotEmpty(t, event.Reply(err))

	out = mustRun(t, cfg, "--as", "@U5678", "email")
	assert.Contains(t, out, "I don't know any email addresses for you yet.")

	_, err = run(t, cfg, "--as", "frey", "email")
	assert.Error(t, err)
}

func TestHistoryAndRestore(t *testing.T) {
	cfg := setup(t)
	createWizardPeople(t, cfg)
	mustRun(t, cfg, "delete", "ZZZ999")

	lines := strings.Fields(mustRun(t, cfg, "history"))
	require.Len(t, lines, 2)

	out := mustRun(t, cfg, "restore", lines[0])
	assert.Contains(t, out, "Restored 1 event")

	out = mustRun(t, cfg, "list", "--all")
	assert.Contains(t, out, "_Showing 1 of 1 event_")
}

func TestImportExportedCalendar(t *testing.T) {
	cfg := setup(t)
	createWizardPeople(t, cfg)
	mustRun(t, cfg, "create", "--id", "AT1", "--name", "Dinner", "--at", "2017-11-25")

	feed := filepath.Join(t.TempDir(), "team.ics")
	require.NoError(t, os.WriteFile(feed, []byte(mustRun(t, cfg, "export")), 0o600))

	other := setup(t)
	out := mustRun(t, other, "import", feed)
	assert.True(t, strings.HasPrefix(out, "_Imported 2 events from 3 VEVENTs_\n"), out)
	assert.Contains(t, out, "`ZZZ999` _Wizard People_ "+
		"<!date^1511078400^{date}|19 November 2017>, <!date^1511596800^{date}|25 November 2017>")
	assert.Contains(t, out, "`AT1` Dinner <!date^1511596800^{date}|25 November 2017>")

	out = mustRun(t, other, "list", "--finalized")
	assert.True(t, strings.HasPrefix(out, "_Showing 1 of 2 events_\n`AT1`"), out)

	// Votes survive: user0 accepted both proposed dates.
	out = mustRun(t, other, "list", "--invited", "U1234", "--unfinalized")
	assert.True(t, strings.HasPrefix(out, "_Showing 1 of 2 events_\n`ZZZ999`"), out)

	out = mustRun(t, other, "import", feed)
	assert.True(t, strings.HasPrefix(out, "_Imported 0 events from 3 VEVENTs_\n"), out)
	assert.Contains(t, out, `Skipped *ZZZ999*, the ID is already taken by "Wizard People".`)
}

func TestImportMissingFile(t *testing.T) {
	cfg := setup(t)
	_, err := run(t, cfg, "import", filepath.Join(t.TempDir(), "missing.ics"))
	assert.Error(t, err)
}
