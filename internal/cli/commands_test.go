package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubflow/internal/backend"
	"clubflow/internal/config"
	"clubflow/internal/snapshot"
	"clubflow/internal/status"
)

func TestShowCommand(t *testing.T) {
	tests := []struct {
		name         string
		subject      backend.Subject
		args         []string
		wantContains []string
		wantExit     int
	}{
		{
			name:         "fresh proposal",
			subject:      subjectAt(12, 0),
			args:         []string{"show", "proposals", "12"},
			wantContains: []string{"Event Proposal #12", "In Progress", "0 of 5 stages approved"},
		},
		{
			name:         "history on request",
			subject:      subjectAt(12, 2),
			args:         []string{"show", "proposals", "12", "--history"},
			wantContains: []string{"History", "approved by approver-1", "2 of 5 stages approved"},
		},
		{
			name:         "compact stepper",
			subject:      subjectAt(12, 1),
			args:         []string{"show", "proposals", "12", "--compact"},
			wantContains: []string{"✓ Club → ● Faculty Advisor"},
		},
		{
			name:         "unknown kind",
			subject:      subjectAt(12, 0),
			args:         []string{"show", "events", "12"},
			wantContains: []string{"unknown subject kind"},
			wantExit:     exitFailure,
		},
		{
			name:         "missing subject",
			subject:      subjectAt(12, 0),
			args:         []string{"show", "proposals", "99"},
			wantContains: []string{"status 404"},
			wantExit:     exitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockBackend(map[string]backend.Subject{"proposals/12": tt.subject})
			app, buf := newTestApp(t, mock)

			result := runCommand(app, tt.args...)

			assert.Equal(t, tt.wantExit, result.ExitCode)
			for _, want := range tt.wantContains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestShowCommand_MalformedSubject(t *testing.T) {
	broken := subjectAt(12, 0)
	broken.ApprovalStage = 9
	app, buf := newTestApp(t, NewMockBackend(map[string]backend.Subject{"proposals/12": broken}))

	result := runCommand(app, "show", "proposals", "12")

	assert.Equal(t, exitFailure, result.ExitCode)
	assert.Contains(t, buf.String(), "invalid approval state")
}

func TestShowCommand_SaveAndReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.yaml")
	subject := subjectAt(7, 3)
	subject.Title = "Robotics Expo"

	app, buf := newTestApp(t, NewMockBackend(map[string]backend.Subject{"bookings/7": subject}))
	result := runCommand(app, "show", "bookings", "7", "--save", path)
	require.Equal(t, 0, result.ExitCode, buf.String())
	assert.Contains(t, buf.String(), "saved bookings/7")

	stored, err := snapshot.NewReader(path).Get("bookings", "7")
	require.NoError(t, err)
	assert.Equal(t, "Robotics Expo", stored.Title)

	// Read back offline: the backend no longer has the subject.
	offline, buf := newTestApp(t, NewMockBackend(nil))
	result = runCommand(offline, "show", "bookings", "7", "--snapshot", path)
	require.Equal(t, 0, result.ExitCode, buf.String())
	assert.Contains(t, buf.String(), "Robotics Expo")
	assert.Contains(t, buf.String(), "3 of 5 stages approved")
}

func TestListCommand(t *testing.T) {
	rejected := subjectAt(3, 2)
	rejected.Status = status.StatusRejected
	rejected.Approvals = append(rejected.Approvals, backend.ApprovalRecord{Stage: 2, Status: status.StatusRejected, Comments: "no"})

	mock := NewMockBackend(map[string]backend.Subject{
		"proposals/1": subjectAt(1, 0),
		"proposals/2": approvedSubject(2),
		"proposals/3": rejected,
		"bookings/9":  subjectAt(9, 0),
	})

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name:    "all proposals",
			args:    []string{"list", "proposals"},
			want:    []string{"#1", "awaiting Club", "#2", "all stages approved", "#3", "rejected at Student Council"},
			notWant: []string{"#9"},
		},
		{
			name:    "pending only",
			args:    []string{"list", "proposals", "--pending"},
			want:    []string{"#1"},
			notWant: []string{"#2", "#3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, buf := newTestApp(t, mock)

			result := runCommand(app, tt.args...)

			require.Equal(t, 0, result.ExitCode)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, buf.String(), w)
			}
		})
	}
}

func TestApproveCommand(t *testing.T) {
	tests := []struct {
		name          string
		subjects      map[string]backend.Subject
		args          []string
		failOn        string
		wantExit      int
		wantDecisions []string
		wantOutput    []string
	}{
		{
			name:          "single approval advances",
			subjects:      map[string]backend.Subject{"proposals/12": subjectAt(12, 0)},
			args:          []string{"approve", "proposals", "12", "--as", "Dr. Smith"},
			wantDecisions: []string{"proposals/12"},
			wantOutput:    []string{"proposals/12: now awaiting Faculty Advisor"},
		},
		{
			name:          "last stage completes the chain",
			subjects:      map[string]backend.Subject{"proposals/12": subjectAt(12, 4)},
			args:          []string{"approve", "proposals", "12", "--as", "Security Office"},
			wantDecisions: []string{"proposals/12"},
			wantOutput:    []string{"fully approved"},
		},
		{
			name: "batch reports progress",
			subjects: map[string]backend.Subject{
				"bookings/1": subjectAt(1, 0),
				"bookings/2": subjectAt(2, 3),
			},
			args:          []string{"approve", "bookings", "1", "2", "--as", "Dr. Smith"},
			wantDecisions: []string{"bookings/1", "bookings/2"},
			wantOutput:    []string{"[1/2] 1", "[2/2] 2"},
		},
		{
			name: "batch stops at terminal subject",
			subjects: map[string]backend.Subject{
				"proposals/1": subjectAt(1, 0),
				"proposals/2": approvedSubject(2),
				"proposals/3": subjectAt(3, 0),
			},
			args:          []string{"approve", "proposals", "1", "2", "3", "--as", "Dr. Smith"},
			wantExit:      exitFailure,
			wantDecisions: []string{"proposals/1"},
			wantOutput:    []string{"invalid approval transition"},
		},
		{
			name:          "backend failure",
			subjects:      map[string]backend.Subject{"proposals/12": subjectAt(12, 0)},
			args:          []string{"approve", "proposals", "12", "--as", "Dr. Smith"},
			failOn:        "proposals/12",
			wantExit:      exitFailure,
			wantDecisions: []string{"proposals/12"},
			wantOutput:    []string{"status 500"},
		},
		{
			name:       "approver is required",
			subjects:   map[string]backend.Subject{"proposals/12": subjectAt(12, 0)},
			args:       []string{"approve", "proposals", "12"},
			wantExit:   exitFailure,
			wantOutput: []string{"approver name required"},
		},
		{
			name:       "dry run sends nothing",
			subjects:   map[string]backend.Subject{"proposals/12": subjectAt(12, 1)},
			args:       []string{"approve", "proposals", "12", "--as", "Dr. Smith", "--dry-run"},
			wantOutput: []string{"(dry run)", "In Progress"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockBackend(tt.subjects)
			mock.FailOn = tt.failOn
			app, buf := newTestApp(t, mock)

			result := runCommand(app, tt.args...)

			assert.Equal(t, tt.wantExit, result.ExitCode, buf.String())
			var keys []string
			for _, d := range mock.Decisions {
				keys = append(keys, d.Key)
			}
			assert.Equal(t, tt.wantDecisions, keys)
			for _, w := range tt.wantOutput {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestApproveCommand_ApproverFromConfig(t *testing.T) {
	mock := NewMockBackend(map[string]backend.Subject{"proposals/12": subjectAt(12, 0)})
	app, _ := newTestApp(t, mock)
	app.Config.Approver = "Config Approver"

	result := runCommand(app, "approve", "proposals", "12")

	assert.Equal(t, 0, result.ExitCode)
	assert.Len(t, mock.Decisions, 1)
}

func TestApproveCommand_Mismatch(t *testing.T) {
	vetoed := subjectAt(12, 0)
	vetoed.Status = status.StatusRejected
	vetoed.Approvals = []backend.ApprovalRecord{{Stage: 0, Status: status.StatusRejected, Comments: "vetoed"}}

	mock := NewMockBackend(map[string]backend.Subject{"proposals/12": subjectAt(12, 0)})
	mock.OverrideAfter = &vetoed
	app, buf := newTestApp(t, mock)

	result := runCommand(app, "approve", "proposals", "12", "--as", "Dr. Smith")

	assert.Equal(t, exitMismatch, result.ExitCode)
	code, ok := IsExitError(result.Err)
	assert.True(t, ok)
	assert.Equal(t, exitMismatch, code)
	assert.Contains(t, buf.String(), "server state differs from expected")
	assert.Contains(t, buf.String(), "Rejected", "authoritative state is rendered")
}

func TestRejectCommand(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantExit     int
		wantDecision bool
		wantOutput   string
	}{
		{
			name:         "reject with comments",
			args:         []string{"reject", "proposals", "12", "--as", "Council", "--comments", "Budget insufficient"},
			wantDecision: true,
			wantOutput:   "rejected at Student Council",
		},
		{
			name:         "short comments flag",
			args:         []string{"reject", "proposals", "12", "--as", "Council", "-m", "Too loud"},
			wantDecision: true,
			wantOutput:   "Skipped",
		},
		{
			name:       "rejection requires comments",
			args:       []string{"reject", "proposals", "12", "--as", "Council"},
			wantExit:   exitFailure,
			wantOutput: "rejection requires comments",
		},
		{
			name:       "blank comments are rejected",
			args:       []string{"reject", "proposals", "12", "--as", "Council", "--comments", "   "},
			wantExit:   exitFailure,
			wantOutput: "rejection requires comments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockBackend(map[string]backend.Subject{"proposals/12": subjectAt(12, 2)})
			app, buf := newTestApp(t, mock)

			result := runCommand(app, tt.args...)

			assert.Equal(t, tt.wantExit, result.ExitCode, buf.String())
			assert.Contains(t, buf.String(), tt.wantOutput)
			if tt.wantDecision {
				require.Len(t, mock.Decisions, 1)
				assert.Equal(t, "reject", mock.Decisions[0].Action)
				assert.Equal(t, status.StatusRejected, mock.Subjects["proposals/12"].Status)
			} else {
				assert.Empty(t, mock.Decisions)
				assert.Equal(t, status.StatusPending, mock.Subjects["proposals/12"].Status, "state unchanged")
			}
		})
	}
}

func TestStagesCommand(t *testing.T) {
	app, buf := newTestApp(t, NewMockBackend(nil))

	result := runCommand(app, "stages")

	require.Equal(t, 0, result.ExitCode)
	out := buf.String()
	assert.Contains(t, out, "Venue Booking (bookings)")
	assert.Contains(t, out, "Event Proposal (proposals)")
	assert.Contains(t, out, "faculty_advisor")
	assert.Contains(t, out, "5. Security")
}

func TestStagesCommand_UnknownKind(t *testing.T) {
	app, buf := newTestApp(t, NewMockBackend(nil))

	result := runCommand(app, "stages", "events")

	assert.Equal(t, exitFailure, result.ExitCode)
	assert.Contains(t, buf.String(), "unknown subject kind")
}

func TestVersionCommand(t *testing.T) {
	app, _ := newTestApp(t, NewMockBackend(nil))
	rootCmd := NewRootCommand(app)
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"version"})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "clubflow dev\n", out.String())
}

func TestRunWithConfig_ManifestOverlay(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "stages.csv")
	require.NoError(t, os.WriteFile(manifestPath, []byte("kind,stage\nbookings,Club\nbookings,Security\n"), 0644))

	cfg := config.DefaultConfig()
	cfg.ManifestPath = manifestPath

	app, err := NewApp(cfg)
	require.NoError(t, err)
	def, err := app.Router.Stages("bookings")
	require.NoError(t, err)
	assert.Equal(t, []string{"Club", "Security"}, def.Names())
}

func TestRunWithConfig_BadManifest(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ManifestPath = filepath.Join(t.TempDir(), "missing.csv")

	result := RunWithConfig(cfg, []string{"stages"})

	assert.Equal(t, exitFailure, result.ExitCode)
	assert.ErrorContains(t, result.Err, "failed to open manifest")
}

func TestExitError(t *testing.T) {
	err := NewExitError(exitMismatch)

	assert.Equal(t, "exit status 2", err.Error())
	code, ok := IsExitError(err)
	assert.True(t, ok)
	assert.Equal(t, 2, code)

	_, ok = IsExitError(assert.AnError)
	assert.False(t, ok)
}
