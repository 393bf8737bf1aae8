package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"AllowanceLogger/internal/collector"
	"AllowanceLogger/internal/metrics"
	"AllowanceLogger/internal/model"
	"AllowanceLogger/internal/notifier"
	"AllowanceLogger/internal/recorder"
	"AllowanceLogger/internal/tracker"
)

type sentFile struct {
	name    string
	content string
	message string
}

type fakeNotifier struct {
	mu     sync.Mutex
	embeds []notifier.Embed
	files  []sentFile
	err    error
}

func (f *fakeNotifier) Send(_ context.Context, e notifier.Embed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeds = append(f.embeds, e)
	return f.err
}

func (f *fakeNotifier) SendFile(_ context.Context, name string, content []byte, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, sentFile{name: name, content: string(content), message: message})
	return f.err
}

type fixture struct {
	sched *Scheduler
	fetch *collector.MockFetcher
	notif *fakeNotifier
	dir   string
	now   time.Time
}

func newFixture(t *testing.T, mode model.Mode, wallets map[string]string) *fixture {
	t.Helper()
	dir := t.TempDir()
	fx := &fixture{
		fetch: collector.NewMockFetcher(),
		notif: &fakeNotifier{},
		dir:   dir,
		now:   time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	ledger := recorder.NewCSVRecorder(dir, mode)
	fx.sched = NewScheduler(context.Background(), Deps{
		Collector: collector.NewCollector(fx.fetch),
		State:     tracker.NewState(),
		Wallets:   model.NewRegistry(wallets),
		Notifier:  fx.notif,
		Ledger:    ledger,
		Recorder:  recorder.MultiRecorder{ledger, recorder.NewNoopRecorder()},
		Mode:      mode,
		Symbol:    "GALA",
		Log:       zaptest.NewLogger(t),
	})
	fx.sched.Now = func() time.Time { return fx.now }
	return fx
}

func (fx *fixture) poll(t *testing.T, wallet, total string) CycleResult {
	t.Helper()
	fx.fetch.SetTotal(wallet, decimal.RequireFromString(total))
	return fx.sched.PollOnce(context.Background())
}

func (fx *fixture) csv(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(fx.dir, name, fx.now.Format("2006-01")+".csv"))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func TestPollOnce_ChangeMode(t *testing.T) {
	fx := newFixture(t, model.ModeChange, map[string]string{"eth|w": "Main Wallet"})

	res := fx.poll(t, "eth|w", "100")
	assert.Equal(t, CycleResult{Checked: 1}, res)
	assert.Empty(t, fx.notif.embeds)
	assert.Equal(t, "", fx.csv(t, "Main_Wallet"))

	fx.poll(t, "eth|w", "100")
	assert.Empty(t, fx.notif.embeds)
	assert.Equal(t, "", fx.csv(t, "Main_Wallet"))

	res = fx.poll(t, "eth|w", "150")
	assert.Equal(t, 1, res.Changes)
	require.Len(t, fx.notif.embeds, 1)
	assert.Equal(t, "📦 Allowance Updated", fx.notif.embeds[0].Title)
	assert.Equal(t, notifier.ColorIncrease, fx.notif.embeds[0].Color)
	assert.Contains(t, fx.notif.embeds[0].Description, "**Previous:** 100 GALA")
	assert.Contains(t, fx.notif.embeds[0].Description, "**New:** 150 GALA")
	assert.Contains(t, fx.notif.embeds[0].Description, "🟢 +50")
	assert.Equal(t, "Date,Change\n2025-03-14,50\n", fx.csv(t, "Main_Wallet"))

	fx.poll(t, "eth|w", "120")
	require.Len(t, fx.notif.embeds, 2)
	assert.Equal(t, notifier.ColorDecrease, fx.notif.embeds[1].Color)
	assert.Contains(t, fx.notif.embeds[1].Description, "🔴 -30")
	assert.Equal(t, "Date,Change\n2025-03-14,50\n2025-03-14,-30\n", fx.csv(t, "Main_Wallet"))
}

func TestPollOnce_RewardMode(t *testing.T) {
	fx := newFixture(t, model.ModeReward, map[string]string{"eth|w": "Node"})

	fx.poll(t, "eth|w", "100")
	assert.Empty(t, fx.notif.embeds)

	fx.poll(t, "eth|w", "150")
	require.Len(t, fx.notif.embeds, 1)
	assert.Equal(t, "🎁 Reward Received", fx.notif.embeds[0].Title)
	assert.Equal(t, "Date,Reward\n2025-03-14,50\n", fx.csv(t, "Node"))

	res := fx.poll(t, "eth|w", "120")
	assert.Equal(t, 0, res.Changes)
	assert.Len(t, fx.notif.embeds, 1)
	assert.Equal(t, "Date,Reward\n2025-03-14,50\n", fx.csv(t, "Node"))

	last, ok := fx.sched.State.Last("eth|w")
	require.True(t, ok)
	assert.Equal(t, "120", last.String())
}

func TestPollOnce_FetchErrorSkipsWallet(t *testing.T) {
	fx := newFixture(t, model.ModeChange, map[string]string{"eth|a": "A", "eth|b": "B"})
	fx.fetch.SetTotal("eth|a", decimal.NewFromInt(10))
	fx.fetch.SetTotal("eth|b", decimal.NewFromInt(20))
	fx.sched.PollOnce(context.Background())

	fx.fetch.SetError("eth|a", errors.New("dial tcp: connection refused"))
	fx.fetch.SetTotal("eth|b", decimal.NewFromInt(25))
	before := testutil.ToFloat64(metrics.FetchErrorsTotal.WithLabelValues("eth|a"))

	res := fx.sched.PollOnce(context.Background())
	assert.Equal(t, CycleResult{Checked: 1, Failed: 1, Changes: 1}, res)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.FetchErrorsTotal.WithLabelValues("eth|a")))

	last, ok := fx.sched.State.Last("eth|a")
	require.True(t, ok)
	assert.Equal(t, "10", last.String())
	assert.Equal(t, "", fx.csv(t, "A"))
	assert.Equal(t, "Date,Change\n2025-03-14,5\n", fx.csv(t, "B"))
	require.Len(t, fx.notif.embeds, 1)
	assert.Contains(t, fx.notif.embeds[0].Description, "`B`")
}

func TestPollOnce_FirstFetchFailsThenSucceeds(t *testing.T) {
	fx := newFixture(t, model.ModeChange, map[string]string{"eth|a": "A"})
	fx.fetch.SetError("eth|a", errors.New("timeout"))
	fx.sched.PollOnce(context.Background())

	_, ok := fx.sched.State.Last("eth|a")
	assert.False(t, ok)

	fx.poll(t, "eth|a", "500")
	assert.Empty(t, fx.notif.embeds)
}

func TestPollOnce_WebhookFailureKeepsRecord(t *testing.T) {
	fx := newFixture(t, model.ModeChange, map[string]string{"eth|w": "W"})
	fx.notif.err = errors.New("status 500")

	fx.poll(t, "eth|w", "1")
	fx.poll(t, "eth|w", "2.5")

	assert.Len(t, fx.notif.embeds, 1)
	assert.Equal(t, "Date,Change\n2025-03-14,1.5\n", fx.csv(t, "W"))
}

func TestPollOnce_MonthlyExport(t *testing.T) {
	fx := newFixture(t, model.ModeReward, map[string]string{"eth|w": "My Node", "eth|x": "Quiet"})
	fx.now = time.Date(2025, 4, 29, 23, 0, 0, 0, time.UTC)
	fx.fetch.SetTotal("eth|x", decimal.NewFromInt(7))
	fx.poll(t, "eth|w", "100")
	fx.poll(t, "eth|w", "110")
	assert.Empty(t, fx.notif.files)

	fx.now = time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)
	res := fx.poll(t, "eth|w", "112.5")
	assert.Equal(t, 1, res.Exports)
	require.Len(t, fx.notif.files, 1)

	want := "Date,Reward\n2025-04-29,10\n2025-04-30,2.5\nTotal,12.5\n"
	assert.Equal(t, want, fx.csv(t, "My_Node"))
	assert.Equal(t, "My_Node_2025-04.csv", fx.notif.files[0].name)
	assert.Equal(t, want, fx.notif.files[0].content)
	assert.Contains(t, fx.notif.files[0].message, "12.5 GALA")

	// later polls on the same day do not export again
	fx.now = fx.now.Add(time.Hour)
	res = fx.poll(t, "eth|w", "112.5")
	assert.Equal(t, 0, res.Exports)
	assert.Len(t, fx.notif.files, 1)
	assert.Equal(t, want, fx.csv(t, "My_Node"))
	assert.Equal(t, "", fx.csv(t, "Quiet"))
}

func TestPollOnce_ChangeModeNeverExports(t *testing.T) {
	fx := newFixture(t, model.ModeChange, map[string]string{"eth|w": "W"})
	fx.now = time.Date(2025, 4, 30, 12, 0, 0, 0, time.UTC)
	fx.poll(t, "eth|w", "1")
	fx.poll(t, "eth|w", "2")
	assert.Empty(t, fx.notif.files)
	assert.Equal(t, "Date,Change\n2025-04-30,1\n", fx.csv(t, "W"))
}

func TestPollOnce_Cancelled(t *testing.T) {
	fx := newFixture(t, model.ModeChange, map[string]string{"eth|w": "W"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := fx.sched.PollOnce(ctx)
	assert.Equal(t, CycleResult{}, res)
	assert.Empty(t, fx.fetch.Calls)
}

func TestPollTask_SkipsWhileRunning(t *testing.T) {
	fx := newFixture(t, model.ModeChange, map[string]string{"eth|w": "W"})
	fx.fetch.SetTotal("eth|w", decimal.NewFromInt(1))
	before := testutil.ToFloat64(metrics.PollCyclesSkippedTotal)

	fx.sched.running.Lock()
	fx.sched.pollTask()
	fx.sched.running.Unlock()

	assert.Empty(t, fx.fetch.Calls)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PollCyclesSkippedTotal))

	fx.sched.RunNow()
	assert.Equal(t, []string{"eth|w"}, fx.fetch.Calls)
}

func TestRegister(t *testing.T) {
	fx := newFixture(t, model.ModeChange, map[string]string{"eth|w": "W"})
	assert.Error(t, fx.sched.Register(0))
	require.NoError(t, fx.sched.Register(time.Minute))
	assert.Len(t, fx.sched.Cron.Entries(), 1)

	fx.sched.Start()
	fx.sched.Stop()
}

func TestIsLastDayOfMonth(t *testing.T) {
	cases := map[string]bool{
		"2025-02-28": true,
		"2024-02-28": false,
		"2024-02-29": true,
		"2025-12-31": true,
		"2025-04-30": true,
		"2025-05-30": false,
		"2025-01-01": false,
	}
	for day, want := range cases {
		d, err := time.Parse("2006-01-02", day)
		require.NoError(t, err)
		assert.Equal(t, want, IsLastDayOfMonth(d.Add(15*time.Hour)), day)
	}
}
