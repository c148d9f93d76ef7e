package config

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/mosaicnetworks/blocknet/src/comm"
	"github.com/mosaicnetworks/blocknet/src/common"
	"github.com/mosaicnetworks/blocknet/src/network"
	"github.com/mosaicnetworks/blocknet/src/peers"
	"github.com/mosaicnetworks/blocknet/src/topology"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"
)

// Default configuration values.
const (
	DefaultLogLevel         = "debug"
	DefaultBindAddr         = "127.0.0.1:1337"
	DefaultServiceAddr      = "127.0.0.1:8000"
	DefaultProtocol         = "tcp"
	DefaultTCPTimeout       = 1000 * time.Millisecond
	DefaultHandshakeTimeout = 5000 * time.Millisecond
	DefaultConnectTimeout   = network.DefaultTimeout
	DefaultGossipInterval   = network.DefaultGossipInterval
	DefaultMaxConnections   = comm.DefaultMaxConnections
	DefaultMaxPool          = 2
	DefaultCacheSize        = 10000
	DefaultStore            = false
	DefaultPolicy           = network.PolicyRandom
	DefaultFanout           = topology.DefaultFanout
	DefaultEvictionDecay    = topology.DefaultEvictionDecay
	DefaultBlocksInterest   = "normal"
	DefaultMessagesInterest = "normal"
)

// Config contains all the configuration properties of a blocknet node.
type Config struct {
	// DataDir is the top-level directory containing blocknet configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// BindAddr is the local address:port where this node accepts connections
	// from other nodes.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is the address other nodes are told to reach this node
	// at. It defaults to BindAddr.
	AdvertiseAddr string `mapstructure:"advertise"`

	// Protocol is the listen protocol. Only tcp is supported.
	Protocol string `mapstructure:"protocol"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// TrustedPeers are the peers used to fetch the genesis block and bootstrap
	// the blockchain, in the id@address form. They are added to the peers
	// listed in peers.json in the data directory.
	TrustedPeers []string `mapstructure:"trusted-peers"`

	// MaxConnections is the maximum number of simultaneous peer connections.
	MaxConnections int `mapstructure:"max-connections"`

	// MaxPool controls how many transport connections are pooled per target.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout of RPC exchanges.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// HandshakeTimeout is the timeout of the handshake RPC.
	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout"`

	// ConnectTimeout bounds the connection to a peer, handshake included.
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"`

	// GossipInterval is the period of gossip rounds.
	GossipInterval time.Duration `mapstructure:"gossip-interval"`

	// Policy selects the nodes blocks, fragments and gossip are sent to:
	// random or interest.
	Policy string `mapstructure:"policy"`

	// Fanout is the number of nodes chosen by the policy, on top of the
	// trusted peers.
	Fanout int `mapstructure:"fanout"`

	// EvictionDecay is how long an unreachable node stays out of the view.
	EvictionDecay time.Duration `mapstructure:"eviction-decay"`

	// BlocksInterest and MessagesInterest are the subscriptions advertised
	// by this node: none, low, normal or high.
	BlocksInterest   string `mapstructure:"blocks-interest"`
	MessagesInterest string `mapstructure:"messages-interest"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// CacheSize is the max number of items in in-memory caches.
	CacheSize int `mapstructure:"cache-size"`

	// Block0 is the hash of the genesis block. When the node has no chain
	// yet, the block is downloaded from the trusted peers.
	Block0 string `mapstructure:"block0"`

	// Genesis creates a new blockchain when the node has no chain yet and no
	// Block0 is configured.
	Genesis bool `mapstructure:"genesis"`

	// Key is the private key of the node.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		BindAddr:         DefaultBindAddr,
		Protocol:         DefaultProtocol,
		ServiceAddr:      DefaultServiceAddr,
		MaxConnections:   DefaultMaxConnections,
		MaxPool:          DefaultMaxPool,
		TCPTimeout:       DefaultTCPTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		ConnectTimeout:   DefaultConnectTimeout,
		GossipInterval:   DefaultGossipInterval,
		Policy:           DefaultPolicy,
		Fanout:           DefaultFanout,
		EvictionDecay:    DefaultEvictionDecay,
		BlocksInterest:   DefaultBlocksInterest,
		MessagesInterest: DefaultMessagesInterest,
		Store:            DefaultStore,
		DatabaseDir:      DefaultDatabaseDir(),
		CacheSize:        DefaultCacheSize,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level blocknet directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// PublicAddr returns the address advertised to other nodes.
func (c *Config) PublicAddr() string {
	if c.AdvertiseAddr != "" {
		return c.AdvertiseAddr
	}
	return c.BindAddr
}

// LoadTrustedPeers returns the trusted peers of the TrustedPeers option
// followed by those of peers.json. Duplicates are removed.
func (c *Config) LoadTrustedPeers() ([]peers.TrustedPeer, error) {
	res := []peers.TrustedPeer{}
	seen := make(map[peers.NodeID]bool)

	add := func(tp peers.TrustedPeer) {
		if !seen[tp.ID] {
			seen[tp.ID] = true
			res = append(res, tp)
		}
	}

	for _, s := range c.TrustedPeers {
		tp, err := ParseTrustedPeer(s)
		if err != nil {
			return nil, err
		}
		add(tp)
	}

	fromFile, err := peers.NewJSONPeers(c.DataDir).TrustedPeers()
	if err != nil {
		return nil, err
	}
	for _, tp := range fromFile {
		add(tp)
	}

	return res, nil
}

// ParseTrustedPeer parses a trusted peer in the id@address form.
func ParseTrustedPeer(s string) (peers.TrustedPeer, error) {
	parts := strings.SplitN(s, "@", 2)
	if len(parts) != 2 || parts[1] == "" {
		return peers.TrustedPeer{}, fmt.Errorf("trusted peer %q is not in the id@address form", s)
	}

	id := peers.NodeID(parts[0])
	if !id.Valid() {
		return peers.TrustedPeer{}, fmt.Errorf("trusted peer %q has an invalid node id", s)
	}

	return peers.TrustedPeer{ID: id, Address: parts[1]}, nil
}

// NetworkConfig builds the configuration of the network tasks.
func (c *Config) NetworkConfig() (network.Config, error) {
	conf := network.DefaultConfig()

	protocol, err := network.ParseProtocol(c.Protocol)
	if err != nil {
		return conf, err
	}

	trusted, err := c.LoadTrustedPeers()
	if err != nil {
		return conf, err
	}

	blocks, err := peers.ParseInterest(c.BlocksInterest)
	if err != nil {
		return conf, err
	}
	messages, err := peers.ParseInterest(c.MessagesInterest)
	if err != nil {
		return conf, err
	}

	conf.ListenAddress = c.BindAddr
	conf.PublicAddress = c.PublicAddr()
	conf.Protocol = protocol
	conf.TrustedPeers = trusted
	conf.MaxConnections = c.MaxConnections
	conf.Timeout = c.ConnectTimeout
	conf.GossipInterval = c.GossipInterval
	conf.Subscriptions = map[peers.Topic]peers.Interest{
		peers.BlocksTopic:   blocks,
		peers.MessagesTopic: messages,
	}
	conf.Policy = c.Policy
	conf.Fanout = c.Fanout
	conf.Topology.EvictionDecay = c.EvictionDecay

	if _, err := conf.NewPolicy(); err != nil {
		return conf, err
	}

	return conf, nil
}

// Logger returns a formatted logrus Entry, with prefix set to "blocknet".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "blocknet")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level blocknet
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Blocknet")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Blocknet")
		} else {
			return filepath.Join(home, ".blocknet")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
