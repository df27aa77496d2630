package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client WalletService 的客戶端
type Client struct {
	cc grpc.ClientConnInterface
	md metadata.MD
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc, md: metadata.MD{}}
}

// AsAccount 回傳帶帳戶驗證資訊的 Client
func (c *Client) AsAccount(id, credential string) *Client {
	return &Client{
		cc: c.cc,
		md: metadata.Pairs(MetadataAccountID, id, MetadataCredential, credential),
	}
}

// AsAdmin 回傳帶管理員驗證資訊的 Client
func (c *Client) AsAdmin(user, password string) *Client {
	return &Client{
		cc: c.cc,
		md: metadata.Pairs(MetadataAdminUser, user, MetadataAdminPassword, password),
	}
}

// Call 呼叫指定方法
//
// 參數:
//
//	ctx: 上下文
//	method: string - 方法名稱 (e.g. "Deposit")
//	fields: map[string]any - 請求欄位
//
// 回傳值:
//
//	*structpb.Struct: 回應
//	error: gRPC status error
func (c *Client) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	if len(c.md) > 0 {
		ctx = metadata.NewOutgoingContext(ctx, c.md)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
