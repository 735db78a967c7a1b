package appbuilder

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/zkemail/paytox/pkg/logger"
	"github.com/zkemail/paytox/pkg/rabbitmq"
	"github.com/zkemail/paytox/pkg/rest"
	"github.com/zkemail/paytox/pkg/utilities"
)

type AppConfig interface {
	GetLoggerConfig() logger.LoggerConfig
	GetRabbitmqConfig() rabbitmq.RabbitmqConfig
	GetRestApiPort() uint16
}

// AppBuilder assembles an Application step by step. Steps panic on
// unrecoverable setup errors; the process cannot serve without them.
type AppBuilder[T utilities.JsonConfigObj[U], U AppConfig] struct {
	Logger     *logger.Logger
	Config     U
	Conn       *amqp.Connection
	Publishers *rabbitmq.PublisherRegistry
	Consumers  *rabbitmq.ConsumerRegistry

	workerServices []rabbitmq.WorkerService
	middlewares    []rest.Middleware
	routes         []rest.Route
	engine         *gin.Engine
	closers        []func() error
}

func New[T utilities.JsonConfigObj[U], U AppConfig]() *AppBuilder[T, U] {
	return &AppBuilder[T, U]{
		Publishers: rabbitmq.NewPublisherRegistry(),
		Consumers:  rabbitmq.NewConsumerRegistry(),
	}
}

func (a *AppBuilder[T, U]) InitLogger(loggerArgs logger.GlobalLoggerConfig) *AppBuilder[T, U] {
	logger.InitDefaultLogger(loggerArgs)
	a.Logger = logger.Default()
	a.Logger.Info("Logger initialized")

	return a
}

func (a *AppBuilder[T, U]) LoadConfig(filePath string) *AppBuilder[T, U] {
	a.Logger.Infof("Preparing to load config from %s ...", filePath)
	config, err := utilities.ReadConfig[T, U](filePath)
	if err != nil {
		a.Logger.Error(err, "Failed to load config")
		panic(err)
	}

	a.Config = config
	a.Logger = logger.NewFromConfig(config.GetLoggerConfig())
	a.Logger.Info("Config successfully loaded.")
	return a
}

// UseConfig installs an already built config, bypassing the file.
func (a *AppBuilder[T, U]) UseConfig(config U) *AppBuilder[T, U] {
	a.Config = config
	return a
}

func (a *AppBuilder[T, U]) InitRabbitmqConnection(ctx context.Context) *AppBuilder[T, U] {
	rabbitmqConfig := a.Config.GetRabbitmqConfig()
	if !rabbitmqConfig.Enabled {
		a.Logger.Info("Rabbitmq disabled in config, skipping connection")
		return a
	}

	a.Logger.Info("Preparing to connect to Rabbitmq server...")
	conn, err := rabbitmq.ConnectToRabbitmq(ctx, rabbitmqConfig, a.Logger)
	if err != nil {
		panic(err)
	}

	a.Conn = conn
	a.closers = append(a.closers, conn.Close)
	a.Logger.Info("Connection with Rabbitmq server established")

	return a
}

func (a *AppBuilder[T, U]) InitRabbitmqRegistries() *AppBuilder[T, U] {
	if a.Conn == nil {
		return a
	}

	a.Logger.Info("Initializing Rabbitmq registries from config")
	rabbitmqConf := a.Config.GetRabbitmqConfig()

	consumers, err := rabbitmq.InitializeConsumerRegistry(a.Conn, rabbitmqConf.ConsumersConfig, a.Logger)
	if err != nil {
		panic(err)
	}
	publishers, err := rabbitmq.InitializePublisherRegistry(a.Conn, rabbitmqConf.PublishersConfig)
	if err != nil {
		panic(err)
	}

	a.Consumers = consumers
	a.Publishers = publishers
	a.Logger.Info("Successfully initialized Rabbitmq registries from config")

	return a
}

// Extend runs an arbitrary setup step with access to the builder state.
func (a *AppBuilder[T, U]) Extend(step func(*AppBuilder[T, U])) *AppBuilder[T, U] {
	step(a)
	return a
}

// OnShutdown registers a cleanup run after the application stops.
func (a *AppBuilder[T, U]) OnShutdown(closer func() error) *AppBuilder[T, U] {
	a.closers = append(a.closers, closer)
	return a
}

func (a *AppBuilder[T, U]) AddWorkerServices(workerServices ...rabbitmq.WorkerService) *AppBuilder[T, U] {
	a.Logger.Info("Adding Worker Services to Application...")
	a.workerServices = append(a.workerServices, workerServices...)
	return a
}

func (a *AppBuilder[T, U]) AddGinMiddleware(middlewares ...rest.Middleware) *AppBuilder[T, U] {
	a.middlewares = append(a.middlewares, middlewares...)
	return a
}

func (a *AppBuilder[T, U]) AddGinRoutes(routes ...rest.Route) *AppBuilder[T, U] {
	a.Logger.Info("Adding Gin REST API routes to Application...")
	a.routes = append(a.routes, routes...)
	return a
}

func (a *AppBuilder[T, U]) InitGinRouter() *AppBuilder[T, U] {
	a.Logger.Info("Initializing Gin Router...")
	router := gin.New()
	router.Use(gin.Recovery(), rest.RequestID(), rest.RequestLogger(a.Logger))

	a.Logger.Info("Registering REST API routes...")
	if err := rest.Register(router, a.middlewares, a.routes...); err != nil {
		panic(err)
	}

	a.engine = router
	a.Logger.Infof("Successfully registered %d REST API routes.", len(a.routes))
	return a
}

// Engine exposes the router for tests and extra mounts.
func (a *AppBuilder[T, U]) Engine() *gin.Engine {
	return a.engine
}

func (a *AppBuilder[T, U]) Build() *Application {
	return &Application{
		Logger:         a.Logger,
		Addr:           fmt.Sprintf("0.0.0.0:%d", a.Config.GetRestApiPort()),
		WorkerServices: a.workerServices,
		Engine:         a.engine,
		Closers:        a.closers,
	}
}
