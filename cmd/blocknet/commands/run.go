package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/blocknet/src/blocknet"
	"github.com/mosaicnetworks/blocknet/src/config"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

//NewRunCmd returns the command that starts a blocknet node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runBlocknet,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runBlocknet(cmd *cobra.Command, args []string) error {
	engine := blocknet.NewBlocknet(&_config.Blocknet)

	if err := engine.Init(); err != nil {
		_config.Blocknet.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return engine.Run(ctx)
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Blocknet.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Blocknet.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write logs to this file")

	// Network
	cmd.Flags().StringP("listen", "l", _config.Blocknet.BindAddr, "Listen IP:Port for blocknet node")
	cmd.Flags().StringP("advertise", "a", _config.Blocknet.AdvertiseAddr, "Advertise IP:Port for blocknet node")
	cmd.Flags().String("protocol", _config.Blocknet.Protocol, "Listen protocol")
	cmd.Flags().StringSlice("trusted-peers", _config.Blocknet.TrustedPeers, "Trusted peers, as id@IP:Port")
	cmd.Flags().DurationP("timeout", "t", _config.Blocknet.TCPTimeout, "TCP Timeout")
	cmd.Flags().Duration("handshake-timeout", _config.Blocknet.HandshakeTimeout, "Handshake Timeout")
	cmd.Flags().Duration("connect-timeout", _config.Blocknet.ConnectTimeout, "Peer connection Timeout")
	cmd.Flags().Int("max-pool", _config.Blocknet.MaxPool, "Connection pool size max")
	cmd.Flags().Int("max-connections", _config.Blocknet.MaxConnections, "Max number of peer connections")

	// Topology
	cmd.Flags().Duration("gossip-interval", _config.Blocknet.GossipInterval, "Time between gossip rounds")
	cmd.Flags().String("policy", _config.Blocknet.Policy, "Peer selection policy: random, interest")
	cmd.Flags().Int("fanout", _config.Blocknet.Fanout, "Number of peers selected on top of trusted peers")
	cmd.Flags().Duration("eviction-decay", _config.Blocknet.EvictionDecay, "Time an unreachable node stays out of the view")
	cmd.Flags().String("blocks-interest", _config.Blocknet.BlocksInterest, "Interest in blocks: none, low, normal, high")
	cmd.Flags().String("messages-interest", _config.Blocknet.MessagesInterest, "Interest in messages: none, low, normal, high")

	// Service
	cmd.Flags().Bool("no-service", _config.Blocknet.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.Blocknet.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Blocknet.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.Blocknet.DatabaseDir, "Dabatabase directory")
	cmd.Flags().Int("cache-size", _config.Blocknet.CacheSize, "Number of items in LRU caches")

	// Blockchain
	cmd.Flags().String("block0", _config.Blocknet.Block0, "Hash of the genesis block, downloaded from trusted peers")
	cmd.Flags().Bool("genesis", _config.Blocknet.Genesis, "Create a new blockchain if none exists")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Blocknet.SetDataDir(_config.Blocknet.DataDir)

	// The config file may have changed the log level
	_config.Blocknet.Logger().Logger.Level = config.LogLevel(_config.Blocknet.LogLevel)

	if _config.LogFile != "" {
		addFileHook(_config.Blocknet.Logger().Logger, _config.LogFile)
	}

	logFields := logrus.Fields{
		"blocknet.DataDir":        _config.Blocknet.DataDir,
		"blocknet.BindAddr":       _config.Blocknet.BindAddr,
		"blocknet.AdvertiseAddr":  _config.Blocknet.AdvertiseAddr,
		"blocknet.ServiceAddr":    _config.Blocknet.ServiceAddr,
		"blocknet.TrustedPeers":   _config.Blocknet.TrustedPeers,
		"blocknet.MaxPool":        _config.Blocknet.MaxPool,
		"blocknet.MaxConnections": _config.Blocknet.MaxConnections,
		"blocknet.Store":          _config.Blocknet.Store,
		"blocknet.LogLevel":       _config.Blocknet.LogLevel,
		"blocknet.TCPTimeout":     _config.Blocknet.TCPTimeout,
		"blocknet.GossipInterval": _config.Blocknet.GossipInterval,
		"blocknet.Policy":         _config.Blocknet.Policy,
		"blocknet.Fanout":         _config.Blocknet.Fanout,
		"blocknet.CacheSize":      _config.Blocknet.CacheSize,
		"blocknet.Block0":         _config.Blocknet.Block0,
		"blocknet.Genesis":        _config.Blocknet.Genesis,
	}

	if _config.Blocknet.Store {
		logFields["blocknet.DatabaseDir"] = _config.Blocknet.DatabaseDir
	}

	_config.Blocknet.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/blocknet.toml (.json, .yaml also work)
	viper.SetConfigName("blocknet")               // name of config file (without extension)
	viper.AddConfigPath(_config.Blocknet.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Blocknet.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Blocknet.Logger().Debugf("No config file found in: %s", _config.Blocknet.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

// addFileHook copies every log entry to path.
func addFileHook(logger *logrus.Logger, path string) {
	pathMap := lfshook.PathMap{}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		logger.WithError(err).Warnf("Failed to open %s, logging to stderr only", path)
		return
	}
	f.Close()

	for _, level := range logrus.AllLevels {
		pathMap[level] = path
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&prefixed.TextFormatter{DisableColors: true},
	))
}
