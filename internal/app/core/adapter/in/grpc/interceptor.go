package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

type accountKey struct{}

// accountID 取得 AuthInterceptor 驗證過的帳戶 ID
func accountID(ctx context.Context) string {
	id, _ := ctx.Value(accountKey{}).(string)
	return id
}

// AuthInterceptor 依方法權限驗證 metadata
//
//	account: x-account-id + x-credential，驗證通過後帳戶 ID 放入 context
//	admin: x-admin-user + x-admin-password
func AuthInterceptor(core *usecase.CoreUseCase) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		level, ok := methodAccess[info.FullMethod]
		if !ok {
			return nil, status.Errorf(codes.Unimplemented, "unknown method %s", info.FullMethod)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		switch level {
		case accessAccount:
			id := firstValue(md, MetadataAccountID)
			credential := firstValue(md, MetadataCredential)
			if id == "" || credential == "" {
				return nil, status.Error(codes.Unauthenticated, "missing account credentials")
			}
			account, err := core.Login(ctx, id, credential)
			if err != nil {
				return nil, toStatus(err)
			}
			ctx = context.WithValue(ctx, accountKey{}, account.ID)
		case accessAdmin:
			user := firstValue(md, MetadataAdminUser)
			password := firstValue(md, MetadataAdminPassword)
			if user == "" || password == "" {
				return nil, status.Error(codes.Unauthenticated, "missing admin credentials")
			}
			if err := core.AuthorizeAdmin(user, password); err != nil {
				return nil, toStatus(err)
			}
		}
		return handler(ctx, req)
	}
}

// LoggingInterceptor 記錄每個 RPC 的結果與耗時，不記錄 metadata (含密碼)
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	log = log.Named("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
		}
		switch code {
		case codes.OK:
			log.Debug("rpc", fields...)
		case codes.Internal, codes.Unknown:
			log.Error("rpc", append(fields, zap.Error(err))...)
		default:
			log.Info("rpc", fields...)
		}
		return resp, err
	}
}

func firstValue(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
