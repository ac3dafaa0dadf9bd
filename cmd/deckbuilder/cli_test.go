package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ramonehamilton/commander-builder/internal/backend"
	"github.com/ramonehamilton/commander-builder/internal/config"
)

// syncBuffer is a bytes.Buffer safe for a command writing while the test
// reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testCLI struct {
	t          *testing.T
	fake       *fakeService
	configPath string
	dir        string
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	for _, key := range []string{config.EnvAPIURL, config.EnvAPIKey, config.EnvClientID, config.EnvCardsURL} {
		t.Setenv(key, "")
	}

	fake, server := newFakeService(t)
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Backend.BaseURL = server.URL
	cfg.Cards.BaseURL = server.URL
	cfg.Cards.RateLimit = "1ms"
	cfg.Storage.Path = filepath.Join(dir, "cards.db")
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, cfg.SaveFile(configPath))

	return &testCLI{t: t, fake: fake, configPath: configPath, dir: dir}
}

func (tc *testCLI) command(out *syncBuffer, args ...string) *cobra.Command {
	c := &cli{newLogger: func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }}
	cmd := newRootCmdFor(c)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--config", tc.configPath}, args...))
	return cmd
}

func (tc *testCLI) run(args ...string) (string, error) {
	tc.t.Helper()
	out := &syncBuffer{}
	err := tc.command(out, args...).Execute()
	return out.String(), err
}

func (tc *testCLI) mustRun(args ...string) string {
	tc.t.Helper()
	out, err := tc.run(args...)
	require.NoError(tc.t, err, out)
	return out
}

func TestVersionSkipsConfig(t *testing.T) {
	out := &syncBuffer{}
	cmd := newRootCmdFor(&cli{newLogger: func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }})
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing", "dir", "config.toml"), "version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "deckbuilder dev")
}

func TestSetup_PersistsClientID(t *testing.T) {
	tc := newTestCLI(t)
	tc.fake.addDeck("Atraxa Superfriends")

	tc.mustRun("decks", "list")

	cfg, err := config.LoadFile(tc.configPath)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Backend.ClientID)
}

func TestSetup_InvalidConfig(t *testing.T) {
	tc := newTestCLI(t)
	require.NoError(t, os.WriteFile(tc.configPath, []byte("[cards]\nrate_limit = \"soon\"\n"), 0o600))

	_, err := tc.run("decks", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSetup_EnvOverridesConfig(t *testing.T) {
	tc := newTestCLI(t)
	tc.fake.addDeck("From Env")

	cfg, err := config.LoadFile(tc.configPath)
	require.NoError(t, err)
	url := cfg.Backend.BaseURL
	cfg.Backend.BaseURL = "http://127.0.0.1:1/unreachable"
	require.NoError(t, cfg.SaveFile(tc.configPath))
	t.Setenv(config.EnvAPIURL, url)

	out := tc.mustRun("decks", "list")
	assert.Contains(t, out, "From Env")
}

func TestDecksList(t *testing.T) {
	tc := newTestCLI(t)
	tc.fake.addDeck("Mono Red", &backend.DeckCard{Card: tc.fake.card("bolt"), Quantity: 1})
	tc.fake.addDeck("Superfriends", &backend.DeckCard{Card: tc.fake.card("atraxa"), Quantity: 1, IsCommander: true})

	out := tc.mustRun("decks", "list")
	assert.Contains(t, out, "Total Decks: 2")
	assert.Contains(t, out, "Mono Red")
	assert.Contains(t, out, "Superfriends (Atraxa, Praetors' Voice)")

	out = tc.mustRun("decks", "list", "--json")
	var summaries []backend.DeckSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 2)
	assert.Nil(t, summaries[0].Commander)
	require.NotNil(t, summaries[1].Commander)
	assert.Equal(t, "atraxa", summaries[1].Commander.ID)
}

func TestDecksList_Empty(t *testing.T) {
	tc := newTestCLI(t)
	assert.Contains(t, tc.mustRun("decks", "list"), "No saved decks found.")
}

func TestDecksCreateRenameCopyDelete(t *testing.T) {
	tc := newTestCLI(t)

	out := tc.mustRun("decks", "create", "Omnath Lands")
	assert.Contains(t, out, "Created deck 1: Omnath Lands")

	out = tc.mustRun("decks", "rename", "1", "Omnath Landfall")
	assert.Contains(t, out, "Renamed deck 1 to Omnath Landfall")
	assert.Equal(t, "Omnath Landfall", tc.fake.deck(1).Name)

	out = tc.mustRun("decks", "copy", "1", "Omnath Copy")
	assert.Contains(t, out, "Copied deck 1 to 2: Omnath Copy")

	out = tc.mustRun("decks", "delete", "1")
	assert.Contains(t, out, "Deleted deck 1")
	assert.Nil(t, tc.fake.deck(1))
	assert.NotNil(t, tc.fake.deck(2))
}

func TestDecksCreate_DefaultName(t *testing.T) {
	tc := newTestCLI(t)
	assert.Contains(t, tc.mustRun("decks", "create"), "Created deck 1: New Deck")
}

func TestDecks_InvalidArguments(t *testing.T) {
	tc := newTestCLI(t)

	_, err := tc.run("decks", "delete", "abc")
	assert.ErrorContains(t, err, `invalid deck id "abc"`)

	_, err = tc.run("decks", "rename", "1", "   ")
	assert.ErrorContains(t, err, "deck name cannot be empty")

	_, err = tc.run("decks", "export", "1", "--format", "pdf")
	assert.ErrorContains(t, err, "unsupported export format")
}

func TestDecksExport(t *testing.T) {
	tc := newTestCLI(t)
	id := tc.fake.addDeck("Burn", &backend.DeckCard{Card: tc.fake.card("bolt"), Quantity: 4})
	require.Equal(t, 1, id)

	out := tc.mustRun("decks", "export", "1")
	assert.Equal(t, "4 Lightning Bolt\n", out)

	path := filepath.Join(tc.dir, "burn.txt")
	out = tc.mustRun("decks", "export", "1", "--output", path)
	assert.Contains(t, out, "Exported deck 1 to "+path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "4 Lightning Bolt\n", string(data))
}

func TestDecksImport(t *testing.T) {
	tc := newTestCLI(t)
	path := filepath.Join(tc.dir, "My Deck.txt")
	list := "Commander\n1 Atraxa, Praetors' Voice\n\nDeck\n1x Sol Ring (C21) 263\n\nSideboard\n1 Lightning Bolt\n"
	require.NoError(t, os.WriteFile(path, []byte(list), 0o600))

	out := tc.mustRun("decks", "import", path)
	assert.Contains(t, out, "Imported 2 cards into deck 1: My Deck")
	assert.Contains(t, out, "Commander: Atraxa, Praetors' Voice")
	assert.Contains(t, out, "Warning:")

	require.Len(t, tc.fake.imports, 1)
	assert.Equal(t, "1 Atraxa, Praetors' Voice\n1 Sol Ring\n", tc.fake.imports[0])
}

func TestDecksImport_FormatErrorShowsHint(t *testing.T) {
	tc := newTestCLI(t)
	path := filepath.Join(tc.dir, "broken.csv")
	require.NoError(t, os.WriteFile(path, []byte("card,amount\nSol Ring,1\n"), 0o600))

	_, err := tc.run("decks", "import", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity,name")
	assert.Empty(t, tc.fake.imports)
}

func TestDecksImport_UnknownExtension(t *testing.T) {
	tc := newTestCLI(t)
	path := filepath.Join(tc.dir, "deck.dek")
	require.NoError(t, os.WriteFile(path, []byte("1 Sol Ring\n"), 0o600))

	_, err := tc.run("decks", "import", path)
	assert.ErrorContains(t, err, "--format")

	out := tc.mustRun("decks", "import", path, "--format", "txt", "--name", "Dek")
	assert.Contains(t, out, "Imported 1 cards into deck 1: Dek")
}

func TestDeckShow(t *testing.T) {
	tc := newTestCLI(t)
	tc.fake.addDeck("Superfriends",
		&backend.DeckCard{Card: tc.fake.card("atraxa"), Quantity: 1, IsCommander: true},
		&backend.DeckCard{Card: tc.fake.card("sol-ring"), Quantity: 1},
		&backend.DeckCard{Card: tc.fake.card("island"), Quantity: 10},
	)

	out := tc.mustRun("deck", "show")
	assert.Contains(t, out, "Deck: Superfriends (#1)")
	assert.Contains(t, out, "Commander: Atraxa, Praetors' Voice")
	assert.Contains(t, out, "Cards: 12")
	assert.Contains(t, out, "1. 1x Sol Ring")
	assert.Contains(t, out, "2. 10x Island")

	out = tc.mustRun("deck", "show", "--format", "arena")
	assert.Contains(t, out, "Commander\n1 Atraxa, Praetors' Voice")

	out = tc.mustRun("deck", "show", "--json")
	var state struct {
		DeckID  int `json:"deck_id"`
		Entries []struct {
			Quantity int `json:"quantity"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, 1, state.DeckID)
	assert.Len(t, state.Entries, 2)
}

func TestDeckShow_CreatesDeckWhenNoneExist(t *testing.T) {
	tc := newTestCLI(t)

	out := tc.mustRun("deck", "show")
	assert.Contains(t, out, "Deck: New Deck (#1)")
	assert.Contains(t, out, "No cards yet.")
}

func TestDeckAdd(t *testing.T) {
	tc := newTestCLI(t)
	tc.fake.addDeck("Artifacts")

	out := tc.mustRun("deck", "add", "Sol", "Ring")
	assert.Contains(t, out, "Added 1x Sol Ring to Artifacts (1 cards)")

	out = tc.mustRun("deck", "--deck", "1", "add", "sol-ring", "--id", "-q", "2")
	assert.Contains(t, out, "(3 cards)")

	deck := tc.fake.deck(1)
	require.Len(t, deck.Cards, 1)
	assert.Equal(t, 3, deck.Cards[0].Quantity)
}

func TestDeckAdd_UnknownCard(t *testing.T) {
	tc := newTestCLI(t)
	tc.fake.addDeck("Artifacts")

	_, err := tc.run("deck", "add", "Black Lotus")
	assert.ErrorContains(t, err, `failed to find card "Black Lotus"`)
	assert.Empty(t, tc.fake.deck(1).Cards)
}

func TestDeckRemove(t *testing.T) {
	tc := newTestCLI(t)
	tc.fake.addDeck("Lands",
		&backend.DeckCard{Card: tc.fake.card("island"), Quantity: 2},
		&backend.DeckCard{Card: tc.fake.card("bolt"), Quantity: 1},
	)

	out := tc.mustRun("deck", "remove", "island")
	assert.Contains(t, out, "Removed island from Lands (2 cards)")

	out = tc.mustRun("deck", "remove", "--index", "2")
	assert.Contains(t, out, "Removed Lightning Bolt from Lands (1 cards)")

	deck := tc.fake.deck(1)
	require.Len(t, deck.Cards, 1)
	assert.Equal(t, 1, deck.Cards[0].Quantity)
}

func TestDeckRemove_Errors(t *testing.T) {
	tc := newTestCLI(t)
	tc.fake.addDeck("Lands", &backend.DeckCard{Card: tc.fake.card("island"), Quantity: 1})

	_, err := tc.run("deck", "remove")
	assert.ErrorContains(t, err, "--index")

	_, err = tc.run("deck", "remove", "Sol Ring")
	assert.ErrorContains(t, err, "card not in deck: Sol Ring")

	_, err = tc.run("deck", "remove", "--index", "5")
	assert.ErrorContains(t, err, "5")
}

func TestDeckCommanderAndCheck(t *testing.T) {
	tc := newTestCLI(t)
	tc.fake.addDeck("Superfriends", &backend.DeckCard{Card: tc.fake.card("bolt"), Quantity: 1})

	out := tc.mustRun("deck", "check", "Lightning Bolt")
	assert.Contains(t, out, "has no commander")

	out = tc.mustRun("deck", "commander", "Atraxa, Praetors' Voice")
	assert.Contains(t, out, "Atraxa, Praetors' Voice now leads Superfriends")
	assert.Contains(t, out, "1 cards are outside the commander's color identity")

	out = tc.mustRun("deck", "check", "Lightning Bolt")
	assert.Contains(t, out, "Lightning Bolt does not fit Atraxa, Praetors' Voice's color identity (WUBG)")

	out = tc.mustRun("deck", "check", "Sol Ring")
	assert.Contains(t, out, "Sol Ring fits")
}

func TestDeckStatsAndChart(t *testing.T) {
	tc := newTestCLI(t)
	tc.fake.addDeck("Burn",
		&backend.DeckCard{Card: tc.fake.card("bolt"), Quantity: 4},
		&backend.DeckCard{Card: tc.fake.card("island"), Quantity: 2},
	)

	out := tc.mustRun("deck", "stats")
	assert.Contains(t, out, "Total Cards: 6")
	assert.Contains(t, out, "Average Mana Value: 1.00")
	assert.Contains(t, out, "Mana Curve:")

	path := filepath.Join(tc.dir, "charts.html")
	out = tc.mustRun("deck", "chart", "--output", path)
	assert.Contains(t, out, "Chart written to "+path)
	html, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(html), "echarts")
}

func TestCardsSearchAndGet(t *testing.T) {
	tc := newTestCLI(t)

	out := tc.mustRun("cards", "search", "ring")
	assert.Contains(t, out, "Showing 1-1 of 1 cards")
	assert.Contains(t, out, "Sol Ring")

	out = tc.mustRun("cards", "search", "zzz")
	assert.Contains(t, out, "No cards found.")

	out = tc.mustRun("cards", "get", "Lightning", "Bolt")
	assert.Contains(t, out, "ID:             bolt")
	assert.Contains(t, out, "Color Identity: R")

	out = tc.mustRun("cards", "get", "--id", "sol-ring", "--json")
	assert.Contains(t, out, `"name": "Sol Ring"`)
}

func TestCommanders(t *testing.T) {
	tc := newTestCLI(t)

	out := tc.mustRun("commanders", "top")
	assert.Contains(t, out, "Top Commanders")
	assert.Contains(t, out, "Atraxa, Praetors' Voice")

	out = tc.mustRun("commanders", "meta", "Atraxa")
	assert.Contains(t, out, "Categories for Atraxa:")
	assert.Contains(t, out, "ramp")

	out = tc.mustRun("commanders", "meta", "Atraxa", "--category", "ramp")
	assert.Contains(t, out, "Sol Ring")

	_, err := tc.run("commanders", "meta", "Atraxa", "--category", "ramp", "--all")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	tc := newTestCLI(t)
	tc.fake.addDeck("One")

	out := tc.mustRun("status", "--json")
	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "ok", report.DeckService)
	assert.Equal(t, 1, report.Decks)
	assert.NotEmpty(t, report.ClientID)
	assert.Equal(t, filepath.Join(tc.dir, "cards.db"), report.CacheDB)
	require.NotNil(t, report.Metrics)
}

func TestServe(t *testing.T) {
	tc := newTestCLI(t)
	tc.fake.addDeck("Served")

	out := &syncBuffer{}
	cmd := tc.command(out, "serve", "--port", "0")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "API server running")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Contains(t, out.String(), "API server stopped.")
}
