// Package conf contains the configuration of the camstream command.
package conf

import (
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/bluenviron/gocamstream/pkg/camera"
	"github.com/bluenviron/gocamstream/pkg/command"
	"github.com/bluenviron/gocamstream/pkg/imagestream"
	"github.com/bluenviron/gocamstream/pkg/packet"
)

const (
	minPacketSize = 1024
	maxPacketSize = 2048
)

// EstimatorConf is the configuration of a rate estimator.
type EstimatorConf struct {
	Window  time.Duration `yaml:"window"`
	Samples int           `yaml:"samples"`
}

// Conf is the configuration.
type Conf struct {
	// peripheral
	Camera             camera.Model `yaml:"camera"`
	Host               string       `yaml:"host"`
	CommandPort        int          `yaml:"command_port"`
	Resolution         string       `yaml:"resolution"`
	PacketSize         uint32       `yaml:"packet_size"`
	AllowAnyPacketSize bool         `yaml:"allow_any_packet_size"`
	StartOnLaunch      bool         `yaml:"start_on_launch"`

	// receiver
	ListenAddress      string        `yaml:"listen_address"`
	MulticastInterface string        `yaml:"multicast_interface"`
	UDPReadBufferSize  int           `yaml:"udp_read_buffer_size"`
	MaxDatagramSize    int           `yaml:"max_datagram_size"`
	DispatchQueueSize  int           `yaml:"dispatch_queue_size"`
	GapPolicy          string        `yaml:"gap_policy"`
	Bandwidth          EstimatorConf `yaml:"bandwidth"`
	FrameRate          EstimatorConf `yaml:"frame_rate"`
	MaxImageSize       int           `yaml:"max_image_size"`

	// outer surfaces
	ViewerAddress  string        `yaml:"viewer_address"`
	MetricsAddress string        `yaml:"metrics_address"`
	SnapshotDir    string        `yaml:"snapshot_dir"`
	StatusPeriod   time.Duration `yaml:"status_period"`

	// logging
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// DefaultConf is the default configuration.
var DefaultConf = Conf{
	Camera:            camera.ModelOV2640,
	CommandPort:       command.DefaultPort,
	Resolution:        "320x240",
	PacketSize:        minPacketSize,
	ListenAddress:     ":1235",
	MaxDatagramSize:   2048,
	DispatchQueueSize: 256,
	GapPolicy:         "discard",
	Bandwidth: EstimatorConf{
		Window:  4 * time.Second,
		Samples: 1024,
	},
	FrameRate: EstimatorConf{
		Window:  5 * time.Second,
		Samples: 128,
	},
	MaxImageSize:  8 * 1024 * 1024,
	ViewerAddress: ":8080",
	SnapshotDir:   "images",
	StatusPeriod:  5 * time.Second,
	LogLevel:      "info",
}

// GetConfString returns the configuration in confBody, or,
// if it is empty, the content of confFile.
func GetConfString(confFile string, confBody string) (string, error) {
	if confBody != "" || confFile == "" {
		return confBody, nil
	}

	buf, err := os.ReadFile(confFile)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// NewConf loads the configuration from a YAML document,
// overriding defaults. CLI flags, when set, override the document.
func NewConf(confString string, strictMode bool, c *cli.Context) (*Conf, error) {
	conf := DefaultConf

	if confString != "" {
		decoder := yaml.NewDecoder(strings.NewReader(confString))
		decoder.KnownFields(strictMode)
		err := decoder.Decode(&conf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrap(err, "could not parse config")
		}
	}

	if c != nil {
		err := conf.updateFromCLI(c)
		if err != nil {
			return nil, err
		}
	}

	err := conf.Validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &conf, nil
}

func (conf *Conf) updateFromCLI(c *cli.Context) error {
	if c.IsSet("camera") {
		err := conf.Camera.UnmarshalText([]byte(c.String("camera")))
		if err != nil {
			return err
		}
	}
	if c.IsSet("host") {
		conf.Host = c.String("host")
	}
	if c.IsSet("resolution") {
		conf.Resolution = c.String("resolution")
	}
	if c.IsSet("packet-size") {
		conf.PacketSize = uint32(c.Uint("packet-size"))
	}
	if c.IsSet("start") {
		conf.StartOnLaunch = c.Bool("start")
	}
	if c.IsSet("listen") {
		conf.ListenAddress = c.String("listen")
	}
	if c.IsSet("multicast-interface") {
		conf.MulticastInterface = c.String("multicast-interface")
	}
	if c.IsSet("gap-policy") {
		conf.GapPolicy = c.String("gap-policy")
	}
	if c.IsSet("viewer") {
		conf.ViewerAddress = c.String("viewer")
	}
	if c.IsSet("metrics") {
		conf.MetricsAddress = c.String("metrics")
	}
	if c.IsSet("snapshot-dir") {
		conf.SnapshotDir = c.String("snapshot-dir")
	}
	if c.IsSet("log-level") {
		conf.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-json") {
		conf.LogJSON = c.Bool("log-json")
	}
	return nil
}

// Validate checks the configuration.
func (conf *Conf) Validate() error {
	if _, ok := conf.Camera.CodeOf(conf.Resolution); !ok {
		return errors.Errorf("resolution '%s' is not supported by camera %v", conf.Resolution, conf.Camera)
	}

	if conf.AllowAnyPacketSize {
		if conf.PacketSize <= packet.HeaderSize {
			return errors.Errorf("packet size (%d) must be greater than %d", conf.PacketSize, packet.HeaderSize)
		}
	} else if conf.PacketSize < minPacketSize || conf.PacketSize > maxPacketSize {
		return errors.Errorf("packet size (%d) must be between %d and %d",
			conf.PacketSize, minPacketSize, maxPacketSize)
	}

	if conf.MaxDatagramSize < int(conf.PacketSize) {
		return errors.Errorf("max datagram size (%d) is smaller than packet size (%d)",
			conf.MaxDatagramSize, conf.PacketSize)
	}

	if conf.CommandPort <= 0 || conf.CommandPort > 65535 {
		return errors.Errorf("invalid command port: %d", conf.CommandPort)
	}

	if conf.DispatchQueueSize <= 0 || (conf.DispatchQueueSize&(conf.DispatchQueueSize-1)) != 0 {
		return errors.New("dispatch queue size must be a power of two")
	}

	if _, err := imagestream.ParseGapPolicy(conf.GapPolicy); err != nil {
		return err
	}

	for name, e := range map[string]EstimatorConf{
		"bandwidth":  conf.Bandwidth,
		"frame rate": conf.FrameRate,
	} {
		if e.Window <= 0 {
			return errors.Errorf("%s window must be positive", name)
		}
		if e.Samples <= 0 {
			return errors.Errorf("%s samples must be positive", name)
		}
	}

	if conf.MaxImageSize <= 0 {
		return errors.New("max image size must be positive")
	}

	if conf.StartOnLaunch && conf.Host == "" {
		return errors.New("host is required to start the stream on launch")
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(conf.LogLevel)); err != nil {
		return errors.Wrap(err, "invalid log level")
	}

	return nil
}

// Mode returns the resolution code of the configured resolution.
func (conf *Conf) Mode() uint8 {
	code, _ := conf.Camera.CodeOf(conf.Resolution)
	return code
}

// Command returns the command that starts the stream.
func (conf *Conf) Command() command.Command {
	return command.Command{
		Mode:       conf.Mode(),
		PacketSize: conf.PacketSize,
	}
}

// CommandAddress returns the address of the peripheral command port.
func (conf *Conf) CommandAddress() string {
	return net.JoinHostPort(conf.Host, strconv.Itoa(conf.CommandPort))
}
