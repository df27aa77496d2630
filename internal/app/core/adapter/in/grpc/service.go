package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName gRPC 服務名稱
const ServiceName = "wallet.v1.WalletService"

// 呼叫端放在 metadata 的驗證資訊
const (
	MetadataAccountID     = "x-account-id"
	MetadataCredential    = "x-credential"
	MetadataAdminUser     = "x-admin-user"
	MetadataAdminPassword = "x-admin-password"
)

// access 方法所需的權限
type access int

const (
	accessPublic access = iota
	accessAccount
	accessAdmin
)

// WalletServiceServer 所有 RPC 的請求與回應都是 google.protobuf.Struct
type WalletServiceServer interface {
	SignUp(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)

	GetAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Deposit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Transfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Withdraw(context.Context, *structpb.Struct) (*structpb.Struct, error)
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Recharge(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)

	SetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Approve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Dashboard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRequests(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Export(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type method struct {
	name    string
	access  access
	handler func(WalletServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var methods = []method{
	{"SignUp", accessPublic, WalletServiceServer.SignUp},
	{"Login", accessPublic, WalletServiceServer.Login},

	{"GetAccount", accessAccount, WalletServiceServer.GetAccount},
	{"Deposit", accessAccount, WalletServiceServer.Deposit},
	{"Transfer", accessAccount, WalletServiceServer.Transfer},
	{"Withdraw", accessAccount, WalletServiceServer.Withdraw},
	{"History", accessAccount, WalletServiceServer.History},
	{"Recharge", accessAccount, WalletServiceServer.Recharge},
	{"UpdateProfile", accessAccount, WalletServiceServer.UpdateProfile},

	{"SetStatus", accessAdmin, WalletServiceServer.SetStatus},
	{"Approve", accessAdmin, WalletServiceServer.Approve},
	{"Reject", accessAdmin, WalletServiceServer.Reject},
	{"Stats", accessAdmin, WalletServiceServer.Stats},
	{"Dashboard", accessAdmin, WalletServiceServer.Dashboard},
	{"ListRequests", accessAdmin, WalletServiceServer.ListRequests},
	{"Export", accessAdmin, WalletServiceServer.Export},
}

// methodAccess FullMethod -> 權限
var methodAccess = func() map[string]access {
	m := make(map[string]access, len(methods))
	for _, md := range methods {
		m[FullMethod(md.name)] = md.access
	}
	return m
}()

// FullMethod 回傳 "/wallet.v1.WalletService/<name>"
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// ServiceDesc 手寫的服務描述，搭配預設的 proto codec 傳送 structpb.Struct
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WalletServiceServer)(nil),
	Methods: func() []grpc.MethodDesc {
		descs := make([]grpc.MethodDesc, 0, len(methods))
		for _, md := range methods {
			descs = append(descs, grpc.MethodDesc{
				MethodName: md.name,
				Handler:    unaryHandler(md),
			})
		}
		return descs
	}(),
	Streams: []grpc.StreamDesc{},
}

// RegisterWalletServiceServer 註冊服務
func RegisterWalletServiceServer(s grpc.ServiceRegistrar, srv WalletServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unaryHandler(md method) grpc.MethodHandler {
	fullMethod := FullMethod(md.name)
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return md.handler(srv.(WalletServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return md.handler(srv.(WalletServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
