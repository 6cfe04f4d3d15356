package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"cbus-mqtt-bridge/pkg/busevents"
	"cbus-mqtt-bridge/pkg/classify"
	"cbus-mqtt-bridge/pkg/config"
	"cbus-mqtt-bridge/pkg/discovery"
	"cbus-mqtt-bridge/pkg/dispatch"
	cbuserrors "cbus-mqtt-bridge/pkg/errors"
	"cbus-mqtt-bridge/pkg/logger"
	"cbus-mqtt-bridge/pkg/metrics"
	"cbus-mqtt-bridge/pkg/mqtt"
	"cbus-mqtt-bridge/pkg/payload"
	"cbus-mqtt-bridge/pkg/pci"
	"cbus-mqtt-bridge/pkg/project"
	"cbus-mqtt-bridge/pkg/recovery"
	"cbus-mqtt-bridge/pkg/topics"
)

// Application wires together every collaborator of the bridge: the MQTT
// client, the PCI adapter, the device classifier, the command-dispatch
// engine, the bus-event fan-out and the discovery publisher.
type Application struct {
	config     *config.Config
	mqttClient *mqtt.Client
	adapter    pci.Adapter
	classifier *classify.Map
	dispatcher *dispatch.Dispatcher
	fanOut     *busevents.FanOut
	announcer  *discovery.Announcer
	metrics    *metrics.InMemoryCollector
	errHandler *cbuserrors.ErrorHandler

	mu           sync.Mutex
	dispatchOnce bool
}

// diagnosticPublisher reports ErrorHandler diagnostics to a single
// non-retained MQTT topic, independent of any group address.
type diagnosticPublisher struct {
	client *mqtt.Client
}

func (p diagnosticPublisher) PublishDiagnostic(_ context.Context, code int, message string) error {
	body := fmt.Sprintf(`{"code":%d,"message":%q}`, code, message)
	return p.client.Publish(topics.DiagnosticTopic, 0, false, []byte(body))
}

// NewApplication builds every collaborator from configuration but
// connects nothing; Start() does that.
func NewApplication(cfg *config.Config) (*Application, error) {
	logger.GlobalLogging = &cfg.Logging
	logger.ConfigureOutput(&cfg.Logging)
	logger.LogStartup("🔧 logging initialized with level: %s", cfg.Logging.Level)

	deviceMap := config.NewDeviceMapSettings(cfg)
	classifier := classify.NewMap(deviceMap.NonDimmable, deviceMap.Switches, deviceMap.BinarySensors, deviceMap.Ignore)

	adapter, err := buildAdapter(config.NewPCISettings(cfg))
	if err != nil {
		return nil, fmt.Errorf("building PCI adapter: %w", err)
	}

	mqttSettings := config.NewMQTTSettings(cfg)
	discoverySettings := config.NewDiscoverySettings(cfg)

	labels, err := project.LoadLabels(discoverySettings.LabelsFile)
	if err != nil {
		return nil, fmt.Errorf("loading group address labels: %w", err)
	}

	app := &Application{
		config:     cfg,
		adapter:    adapter,
		classifier: classifier,
	}

	app.mqttClient, err = mqtt.NewClient(mqtt.Settings{
		Broker:      mqttSettings.Broker,
		Port:        mqttSettings.Port,
		ClientID:    mqttSettings.ClientID,
		Username:    mqttSettings.Username,
		Password:    mqttSettings.Password,
		KeepAlive:   mqttSettings.KeepAlive,
		RetryDelay:  mqttSettings.RetryDelay,
		StatusTopic: discoverySettings.StatusTopic,
		TLS: mqtt.TLSSettings{
			Enabled:  mqttSettings.TLS.Enabled,
			CAFile:   mqttSettings.TLS.CAFile,
			CertFile: mqttSettings.TLS.CertFile,
			KeyFile:  mqttSettings.TLS.KeyFile,
		},
	}, app.onMQTTConnect)
	if err != nil {
		return nil, fmt.Errorf("building MQTT client: %w", err)
	}

	app.metrics = metrics.NewInMemoryCollector()
	app.dispatcher = dispatch.NewDispatcher(adapter, app.mqttClient, dispatchSettings(config.NewDispatchSettings(cfg)))
	app.dispatcher.SetMetrics(app.metrics)
	app.fanOut = busevents.New(classifier, app.mqttClient)
	app.fanOut.SetMetrics(app.metrics)
	app.announcer = discovery.New(app.mqttClient, app.mqttClient, classifier, labels)
	app.errHandler = cbuserrors.NewErrorHandler(diagnosticPublisher{client: app.mqttClient})

	adapter.OnBusEvent(app.fanOut.Handle)
	if config.NewPCISettings(cfg).AnswerClockRequests {
		adapter.OnClockRequest(func() {
			logger.LogDebug("🕑 clock request received from PCI (no time-sync response configured)")
		})
	}

	return app, nil
}

func dispatchSettings(s config.DispatchSettings) dispatch.Settings {
	return dispatch.Settings{
		InterFrameGap:       s.InterFrameGap,
		ConfirmationTimeout: s.ConfirmationTimeout,
		WatchdogPeriod:      s.WatchdogPeriod,
		MaxAttempts:         s.MaxAttempts,
		QueueCapacity:       s.QueueCapacity,
	}
}

func buildAdapter(settings config.PCISettings) (pci.Adapter, error) {
	var base pci.Adapter
	switch settings.Transport {
	case "serial":
		base = pci.NewSerialConnector(settings.SerialDevice, settings.SerialBaud, settings.RetryDelay)
	case "tcp":
		base = pci.NewTCPConnector(settings.TCPAddress, settings.DialTimeout, settings.RetryDelay)
	default:
		return nil, fmt.Errorf("unrecognized pci transport %q", settings.Transport)
	}

	cbConfig := recovery.CircuitBreakerConfig{
		MaxFailures:      settings.CircuitBreaker.MaxFailures,
		Timeout:          time.Duration(settings.CircuitBreaker.TimeoutSeconds) * time.Second,
		HalfOpenMaxTries: settings.CircuitBreaker.HalfOpenMaxTries,
	}
	return pci.NewCircuitBreakerAdapter(base, cbConfig), nil
}

// onMQTTConnect fires on every successful (re-)connection. The first
// connection starts the dispatcher; every connection republishes
// discovery, since Home Assistant's own retained state is cleared on a
// broker restart but the bridge has no way to tell the two apart.
func (app *Application) onMQTTConnect() {
	if err := app.announcer.PublishAll(app.handleSetMessage); err != nil {
		logger.LogError("⚠️ error publishing discovery configuration: %v", err)
	}

	app.mu.Lock()
	first := !app.dispatchOnce
	app.dispatchOnce = true
	app.mu.Unlock()

	if first {
		app.dispatcher.Start(context.Background())
	}
}

// handleSetMessage is the shared light/switch set-topic handler wired to
// every subscription the discovery publisher makes: decode into a
// CommandIntent and hand it to the dispatcher.
func (app *Application) handleSetMessage(topic string, raw []byte) {
	intent, err := payload.DecodeSetTopic(topic, app.classifier, raw)
	if err != nil {
		app.errHandler.Handle(context.Background(), err)
		return
	}
	if err := app.dispatcher.Enqueue(intent); err != nil {
		logger.LogWarn("⚠️ dropping command on %s: %v", topic, err)
	}
}

// Start connects the PCI adapter and the MQTT client. The dispatcher
// itself is started from onMQTTConnect, once the broker session exists.
func (app *Application) Start(ctx context.Context) error {
	logger.LogInfo("🚀 starting C-Bus MQTT bridge...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := app.adapter.Connect(gctx); err != nil {
			return err
		}
		app.metrics.SetPCIConnected(true)
		return nil
	})
	g.Go(func() error { return app.mqttClient.Connect(gctx) })

	if err := g.Wait(); err != nil {
		return fmt.Errorf("error connecting collaborators: %w", err)
	}

	logger.LogInfo("✅ C-Bus MQTT bridge started successfully")
	return nil
}

// Stop disconnects every collaborator. The command queue is not
// persisted across a stop; anything in flight is dropped.
func (app *Application) Stop() {
	logger.LogInfo("🛑 stopping C-Bus MQTT bridge...")
	app.dispatcher.Stop()
	app.adapter.Disconnect()
	app.mqttClient.Disconnect()
	logger.LogInfo("✅ C-Bus MQTT bridge stopped")
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	configPath, overrides, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if overrides.showHelp {
		printUsage()
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}
	overrides.applyTo(cfg)

	app, err := NewApplication(cfg)
	if err != nil {
		logger.LogError("application creation error: %v", err)
		os.Exit(1)
	}

	if err := app.Start(ctx); err != nil {
		logger.LogError("application start error: %v", err)
		os.Exit(1)
	}

	<-sigChan
	logger.LogInfo("📢 stop signal received...")
	app.Stop()
}

// cliOverrides carries every flag the CLI accepts on top of the YAML
// configuration. A zero-value field means "use what the config file (or
// its own default) says".
type cliOverrides struct {
	showHelp bool

	broker    string
	port      int
	keepAlive int
	username  string
	password  string
	authFile  string

	tlsEnabled bool
	caFile     string
	certFile   string
	keyFile    string

	serialDevice string
	tcpAddress   string
	baud         int

	timeSyncInterval    int
	answerClockRequests bool
	projectFile         string

	nonDimmable   string
	switches      string
	binarySensors string
	ignore        string
}

// parseArgs implements the bridge's CLI surface: an optional positional
// config path plus a flat set of "--flag value" overrides, parsed by hand
// rather than through the flag package.
func parseArgs(args []string) (configPath string, overrides cliOverrides, err error) {
	positionalSeen := false

	next := func(i int) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("flag %s requires a value", args[i])
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--help", "-h":
			overrides.showHelp = true
			return "", overrides, nil
		case "--broker":
			overrides.broker, err = next(i)
			i++
		case "--port":
			var v string
			if v, err = next(i); err == nil {
				overrides.port, err = strconv.Atoi(v)
			}
			i++
		case "--keepalive":
			var v string
			if v, err = next(i); err == nil {
				overrides.keepAlive, err = strconv.Atoi(v)
			}
			i++
		case "--username":
			overrides.username, err = next(i)
			i++
		case "--password":
			overrides.password, err = next(i)
			i++
		case "--auth-file":
			overrides.authFile, err = next(i)
			i++
		case "--tls":
			overrides.tlsEnabled = true
		case "--ca":
			overrides.caFile, err = next(i)
			i++
		case "--cert":
			overrides.certFile, err = next(i)
			i++
		case "--key":
			overrides.keyFile, err = next(i)
			i++
		case "--serial":
			overrides.serialDevice, err = next(i)
			i++
		case "--tcp":
			overrides.tcpAddress, err = next(i)
			i++
		case "--baud":
			var v string
			if v, err = next(i); err == nil {
				overrides.baud, err = strconv.Atoi(v)
			}
			i++
		case "--time-sync-interval":
			var v string
			if v, err = next(i); err == nil {
				overrides.timeSyncInterval, err = strconv.Atoi(v)
			}
			i++
		case "--answer-clock-requests":
			overrides.answerClockRequests = true
		case "--project-file":
			overrides.projectFile, err = next(i)
			i++
		case "--non-dimmable-lights":
			overrides.nonDimmable, err = next(i)
			i++
		case "--switches":
			overrides.switches, err = next(i)
			i++
		case "--binary-sensors":
			overrides.binarySensors, err = next(i)
			i++
		case "--ignore":
			overrides.ignore, err = next(i)
			i++
		default:
			if strings.HasPrefix(arg, "--") {
				return "", overrides, fmt.Errorf("unrecognized flag %s", arg)
			}
			if positionalSeen {
				return "", overrides, fmt.Errorf("unexpected positional argument %q", arg)
			}
			configPath = arg
			positionalSeen = true
		}
		if err != nil {
			return "", overrides, err
		}
	}

	if overrides.authFile != "" {
		user, pass, authErr := readAuthFile(overrides.authFile)
		if authErr != nil {
			return "", overrides, authErr
		}
		overrides.username, overrides.password = user, pass
	}

	return configPath, overrides, nil
}

func readAuthFile(path string) (username, password string, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading auth file %s: %w", path, err)
	}
	user, pass, ok := strings.Cut(strings.TrimSpace(string(raw)), ":")
	if !ok {
		return "", "", fmt.Errorf("auth file %s must contain \"username:password\"", path)
	}
	return user, pass, nil
}

// applyTo layers the CLI overrides on top of a loaded Config. Flags take
// precedence over whatever the YAML file specified; GA list flags replace
// their config-file list wholesale, same as the environment overrides.
func (o cliOverrides) applyTo(cfg *config.Config) {
	if o.broker != "" {
		cfg.MQTT.Broker = o.broker
	}
	if o.port != 0 {
		cfg.MQTT.Port = o.port
	}
	if o.keepAlive != 0 {
		cfg.MQTT.KeepAlive = o.keepAlive
	}
	if o.username != "" {
		cfg.MQTT.Username = o.username
	}
	if o.password != "" {
		cfg.MQTT.Password = o.password
	}
	if o.tlsEnabled {
		cfg.MQTT.TLS.Enabled = true
	}
	if o.caFile != "" {
		cfg.MQTT.TLS.CAFile = o.caFile
	}
	if o.certFile != "" {
		cfg.MQTT.TLS.CertFile = o.certFile
	}
	if o.keyFile != "" {
		cfg.MQTT.TLS.KeyFile = o.keyFile
	}
	if o.serialDevice != "" {
		cfg.PCI.Transport = "serial"
		cfg.PCI.SerialDevice = o.serialDevice
	}
	if o.tcpAddress != "" {
		cfg.PCI.Transport = "tcp"
		cfg.PCI.TCPAddress = o.tcpAddress
	}
	if o.baud != 0 {
		cfg.PCI.SerialBaud = o.baud
	}
	if o.timeSyncInterval != 0 {
		cfg.PCI.TimeSyncIntervalSec = o.timeSyncInterval
	}
	if o.answerClockRequests {
		cfg.PCI.AnswerClockRequests = true
	}
	if o.projectFile != "" {
		cfg.Project.LabelsFile = o.projectFile
	}
	if o.nonDimmable != "" {
		cfg.Devices.NonDimmable = parseCSVGAList(o.nonDimmable)
	}
	if o.switches != "" {
		cfg.Devices.Switches = parseCSVGAList(o.switches)
	}
	if o.binarySensors != "" {
		cfg.Devices.BinarySensors = parseCSVGAList(o.binarySensors)
	}
	if o.ignore != "" {
		cfg.Devices.Ignore = parseCSVGAList(o.ignore)
	}
}

func parseCSVGAList(raw string) []int {
	var gas []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > 255 {
			logger.LogWarn("⚠️ ignoring invalid group address %q in CLI list", part)
			continue
		}
		gas = append(gas, n)
	}
	return gas
}

func printUsage() {
	fmt.Printf("Usage: %s [config_path] [flags]\n", os.Args[0])
	fmt.Println("  config_path: path to configuration file (optional)")
	fmt.Println()
	fmt.Println("  --broker, --port, --keepalive, --username, --password, --auth-file")
	fmt.Println("  --tls, --ca, --cert, --key")
	fmt.Println("  --serial <device> | --tcp <address>, --baud")
	fmt.Println("  --time-sync-interval <seconds>, --answer-clock-requests")
	fmt.Println("  --project-file <path>")
	fmt.Println("  --non-dimmable-lights, --switches, --binary-sensors, --ignore <csv group addresses>")
}
