package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	internal "github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

func (suite *ConfigTestSuite) configPath() string {
	return filepath.Join(suite.tempDir, "dtool", "dtool.json")
}

func (suite *ConfigTestSuite) TestLoadMissingFileIsEmpty() {
	store := NewStore(suite.configPath(), nil)
	require.NoError(suite.T(), store.Load())
	assert.Empty(suite.T(), store.Keys())
}

func (suite *ConfigTestSuite) TestLoadExistingFile() {
	content := `{
  "DTOOL_S3_ENDPOINT_bucket1": "https://s3.example.org",
  "DTOOL_SMB_SERVER_NAME_share": "smb.example.org",
  "DTOOL_SMB_SERVER_PORT_share": 445,
  "DTOOL_USER_FULL_NAME": "Jane Doe"
}`
	require.NoError(suite.T(), os.MkdirAll(filepath.Dir(suite.configPath()), 0o755))
	require.NoError(suite.T(), os.WriteFile(suite.configPath(), []byte(content), 0o644))

	store := NewStore(suite.configPath(), nil)
	require.NoError(suite.T(), store.Load())

	v, ok := store.Get("DTOOL_USER_FULL_NAME")
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), "Jane Doe", v)

	port, ok := store.Get("DTOOL_SMB_SERVER_PORT_share")
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), "445", port)

	assert.Equal(suite.T(), []string{"DTOOL_S3_ENDPOINT_bucket1"}, store.KeysWithPrefix(PrefixS3Endpoint))
	assert.Equal(suite.T(), []string{"DTOOL_SMB_SERVER_NAME_share", "DTOOL_SMB_SERVER_PORT_share"},
		store.KeysWithPrefix("DTOOL_SMB_SERVER_"))
}

func (suite *ConfigTestSuite) TestLoadMalformedFile() {
	require.NoError(suite.T(), os.MkdirAll(filepath.Dir(suite.configPath()), 0o755))
	require.NoError(suite.T(), os.WriteFile(suite.configPath(), []byte(`{"unclosed": `), 0o644))

	store := NewStore(suite.configPath(), nil)
	assert.Error(suite.T(), store.Load())
}

func (suite *ConfigTestSuite) TestSetPersistsAndPublishes() {
	broker := NewBroker()
	store := NewStore(suite.configPath(), broker)
	require.NoError(suite.T(), store.Load())

	var events []Event
	unsubscribe := broker.Subscribe(internal.ConfigChangedTopic, func(ev Event) {
		events = append(events, ev)
	})
	defer unsubscribe()

	require.NoError(suite.T(), store.Set(KeyLookupServerToken, "secret-token"))
	// unchanged values do not publish again
	require.NoError(suite.T(), store.Set(KeyLookupServerToken, "secret-token"))

	require.Len(suite.T(), events, 1)
	assert.Equal(suite.T(), []string{KeyLookupServerToken}, events[0].Keys)
	assert.Equal(suite.T(), "local", events[0].Source)

	reloaded := NewStore(suite.configPath(), nil)
	require.NoError(suite.T(), reloaded.Load())
	v, ok := reloaded.Get(KeyLookupServerToken)
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), "secret-token", v)

	info, err := os.Stat(suite.configPath())
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), os.FileMode(0o600), info.Mode().Perm())

	require.NoError(suite.T(), store.Delete(KeyLookupServerToken))
	require.Len(suite.T(), events, 2)
	_, ok = store.Get(KeyLookupServerToken)
	assert.False(suite.T(), ok)
}

func (suite *ConfigTestSuite) TestReloadIgnoresOwnWrites() {
	store := NewStore(suite.configPath(), nil)
	require.NoError(suite.T(), store.Set("DTOOL_USER_EMAIL", "jane@example.org"))

	changed, err := store.Reload()
	require.NoError(suite.T(), err)
	assert.False(suite.T(), changed)

	require.NoError(suite.T(), os.WriteFile(suite.configPath(), []byte(`{"DTOOL_USER_EMAIL": "john@example.org"}`), 0o600))
	changed, err = store.Reload()
	require.NoError(suite.T(), err)
	assert.True(suite.T(), changed)
	assert.Equal(suite.T(), "john@example.org", store.GetDefault("DTOOL_USER_EMAIL", ""))
}

func (suite *ConfigTestSuite) TestSettingsDefaults() {
	settings, err := LoadSettings(filepath.Join(suite.tempDir, "settings.json"))
	require.NoError(suite.T(), err)

	st, err := settings.Get()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), DefaultDependencyKeys, st.DependencyKeys)
	assert.Empty(suite.T(), st.LocalBaseURIs)
	assert.Equal(suite.T(), internal.DefaultItemDownloadDir, st.ItemDownloadDirectory)
	assert.True(suite.T(), st.YAMLLintingEnabled)
	assert.True(suite.T(), st.VerifySSL)
	assert.False(suite.T(), st.OpenDownloadedItem)
}

func (suite *ConfigTestSuite) TestSettingsUpdateRoundTrip() {
	path := filepath.Join(suite.tempDir, "gui", "settings.json")
	settings, err := LoadSettings(path)
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), settings.AddLocalBaseURI("/data/p1"))
	require.NoError(suite.T(), settings.AddLocalBaseURI("/data/p2"))
	require.NoError(suite.T(), settings.AddLocalBaseURI("/data/p1"))
	require.NoError(suite.T(), settings.Update(func(st *Settings) {
		st.VerifySSL = false
		st.DependencyKeys = []string{"readme.parent"}
	}))

	reloaded, err := LoadSettings(path)
	require.NoError(suite.T(), err)
	st, err := reloaded.Get()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"/data/p1", "/data/p2"}, st.LocalBaseURIs)
	assert.False(suite.T(), st.VerifySSL)
	assert.Equal(suite.T(), []string{"readme.parent"}, st.DependencyKeys)

	removed, err := reloaded.RemoveLocalBaseURI("/data/p1")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), removed)
	assert.Equal(suite.T(), []string{"/data/p2"}, reloaded.LocalBaseURIs())

	removed, err = reloaded.RemoveLocalBaseURI("/data/missing")
	require.NoError(suite.T(), err)
	assert.False(suite.T(), removed)
}

func (suite *ConfigTestSuite) TestSettingsConcurrentUpdates() {
	path := filepath.Join(suite.tempDir, "gui", "settings.json")
	settings, err := LoadSettings(path)
	require.NoError(suite.T(), err)

	const writers = 50
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- settings.AddLocalBaseURI(fmt.Sprintf("/data/p%02d", i))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(suite.T(), err)
	}

	assert.Len(suite.T(), settings.LocalBaseURIs(), writers)

	reloaded, err := LoadSettings(path)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), reloaded.LocalBaseURIs(), writers)
}

func (suite *ConfigTestSuite) TestSettingsEnvironmentOverride() {
	suite.T().Setenv("DTOOL_LOOKUP_GUI_VERIFY_SSL", "false")

	settings, err := LoadSettings(filepath.Join(suite.tempDir, "settings.json"))
	require.NoError(suite.T(), err)
	st, err := settings.Get()
	require.NoError(suite.T(), err)
	assert.False(suite.T(), st.VerifySSL)
}

func (suite *ConfigTestSuite) TestSettingsMalformedFile() {
	path := filepath.Join(suite.tempDir, "settings.json")
	require.NoError(suite.T(), os.WriteFile(path, []byte(`{"verify-ssl": [unclosed`), 0o644))

	settings, err := LoadSettings(path)
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), settings)
}

func (suite *ConfigTestSuite) TestWatcherPublishesExternalEdits() {
	broker := NewBroker()
	store := NewStore(suite.configPath(), broker)
	require.NoError(suite.T(), store.Set("DTOOL_USER_FULL_NAME", "Jane"))

	var mu sync.Mutex
	var external int
	broker.Subscribe(internal.ConfigChangedTopic, func(ev Event) {
		if ev.Source == "external" {
			mu.Lock()
			external++
			mu.Unlock()
		}
	})

	w, err := NewWatcher(store, 20*time.Millisecond)
	require.NoError(suite.T(), err)
	ctx, cancel := context.WithCancel(context.Background())
	suite.T().Cleanup(cancel)
	require.NoError(suite.T(), w.Start(ctx))
	defer w.Stop()

	require.NoError(suite.T(), os.WriteFile(suite.configPath(), []byte(`{"DTOOL_USER_FULL_NAME": "John"}`), 0o600))

	assert.Eventually(suite.T(), func() bool {
		mu.Lock()
		defer mu.Unlock()
		return external > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(suite.T(), "John", store.GetDefault("DTOOL_USER_FULL_NAME", ""))
}

func TestBrokerUnsubscribe(t *testing.T) {
	broker := NewBroker()
	calls := 0
	unsubscribe := broker.Subscribe("topic", func(Event) { calls++ })
	assert.Equal(t, 1, broker.Subscribers("topic"))

	broker.Publish(Event{Topic: "topic"})
	broker.Publish(Event{Topic: "other"})
	unsubscribe()
	unsubscribe()
	broker.Publish(Event{Topic: "topic"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, broker.Subscribers("topic"))
}
