// Package metrics 暴露引擎运行计数与调试端口。
// 计数走 expvar，配套的 HTTP 服务由环境变量决定是否监听，
// 生产上只建议绑定内网地址。
package metrics

import (
	"context"
	"errors"
	"expvar"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ReconcileRuns   = expvar.NewInt("reconcile_runs")
	ReconcileErrors = expvar.NewInt("reconcile_errors")
	SnapshotSaves   = expvar.NewInt("snapshot_saves")
	SettingLoads    = expvar.NewInt("setting_loads")
	BreakerTrips    = expvar.NewInt("breaker_trips")
)

const drainTimeout = 2 * time.Second

func debugMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	// pprof 注册到自己的 mux，不污染 DefaultServeMux
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// StartAsync 非阻塞启动 expvar + pprof 服务，ctx 结束后优雅关闭。
// 监听失败立刻报错，便于发现端口被占。
func StartAsync(ctx context.Context, addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Addr: addr, Handler: debugMux()}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics 服务异常退出: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		_ = srv.Shutdown(drainCtx)
	}()
	return srv, nil
}
