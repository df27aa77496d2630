package grpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// Pool 依目標位址快取 gRPC 連線，同一個位址只建立一條連線 (Thread-safe)
type Pool struct {
	mu           sync.Mutex
	conns        map[string]*grpc.ClientConn
	interceptors []grpc.UnaryClientInterceptor
	dialOpts     []grpc.DialOption
}

// PoolOption Pool 的選項
type PoolOption func(*Pool)

// WithInterceptor 加入 UnaryClientInterceptor，依加入順序串接
func WithInterceptor(interceptor grpc.UnaryClientInterceptor) PoolOption {
	return func(p *Pool) {
		p.interceptors = append(p.interceptors, interceptor)
	}
}

// WithDialOptions 額外的連線選項 (例如測試用的 bufconn dialer)
func WithDialOptions(opts ...grpc.DialOption) PoolOption {
	return func(p *Pool) {
		p.dialOpts = append(p.dialOpts, opts...)
	}
}

// TimeoutInterceptor 呼叫端沒有設定 deadline 時套用預設逾時
func TimeoutInterceptor(timeout time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if _, ok := ctx.Deadline(); !ok && timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{conns: make(map[string]*grpc.ClientConn)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetConnection 取得或建立通往 target 的連線
//
// 參數:
//
//	target: string - 伺服器位址 (e.g., "localhost:50051")
//
// 回傳值:
//
//	*grpc.ClientConn: 連線 (lazy，第一次呼叫時才真正連線)
//	error: 建立失敗
func (p *Pool) GetConnection(target string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[target]; ok {
		if conn.GetState() != connectivity.Shutdown {
			return conn, nil
		}
		// 已被關閉的連線重新建立
		delete(p.conns, target)
	}

	opts := []grpc.DialOption{
		// walletctl 只連內網或本機，預設不加密
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: false,
		}),
	}
	if len(p.interceptors) > 0 {
		opts = append(opts, grpc.WithChainUnaryInterceptor(p.interceptors...))
	}
	opts = append(opts, p.dialOpts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for target %s: %w", target, err)
	}
	p.conns[target] = conn
	return conn, nil
}

// Close 關閉所有連線，回傳第一個錯誤
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for target, conn := range p.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, target)
	}
	return firstErr
}
