package appbuilder_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appbuilder "github.com/zkemail/paytox/pkg/app_builder"
	"github.com/zkemail/paytox/pkg/logger"
	"github.com/zkemail/paytox/pkg/rabbitmq"
	"github.com/zkemail/paytox/pkg/rest"
)

type testConfig struct{ port uint16 }

func (c testConfig) GetLoggerConfig() logger.LoggerConfig       { return logger.LoggerConfig{} }
func (c testConfig) GetRabbitmqConfig() rabbitmq.RabbitmqConfig { return rabbitmq.RabbitmqConfig{} }
func (c testConfig) GetRestApiPort() uint16                     { return c.port }

type testConfigJson struct{}

func (testConfigJson) ConvertToDomain() testConfig { return testConfig{} }

type countingWorker struct {
	started atomic.Int32
}

func (w *countingWorker) GetServiceName() string { return "counting" }

func (w *countingWorker) StartService(ctx context.Context) error {
	w.started.Add(1)
	<-ctx.Done()
	return nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newBuilder() *appbuilder.AppBuilder[testConfigJson, testConfig] {
	return appbuilder.New[testConfigJson, testConfig]().
		InitLogger(logger.GlobalLoggerConfig{}).
		UseConfig(testConfig{})
}

func TestBuilderRegistersRoutes(t *testing.T) {
	b := newBuilder().
		InitRabbitmqConnection(context.Background()).
		InitRabbitmqRegistries().
		AddGinRoutes(rest.NewRoute(rest.GET, "v1", "/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})).
		InitGinRouter()

	w := httptest.NewRecorder()
	b.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Nil(t, b.Conn, "rabbitmq is disabled")
}

func TestApplicationStartStopsOnCancel(t *testing.T) {
	worker := &countingWorker{}
	closed := atomic.Bool{}

	app := newBuilder().
		AddWorkerServices(worker).
		OnShutdown(func() error { closed.Store(true); return nil }).
		InitGinRouter().
		Build()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Start(ctx) }()

	require.Eventually(t, func() bool { return worker.started.Load() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not stop")
	}
	assert.True(t, closed.Load())
}
