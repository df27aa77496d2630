package grpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// GrpcServer 將 gRPC 請求轉給 CoreUseCase
//
// 帳戶與管理員驗證由 AuthInterceptor 處理，handler 只負責欄位轉換
type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) SignUp(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	account, err := s.core.SignUp(ctx,
		stringField(req, "id"),
		stringField(req, "name"),
		stringField(req, "credential"))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(accountValue(account))
}

func (s *GrpcServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	account, err := s.core.Login(ctx, stringField(req, "id"), stringField(req, "credential"))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(accountValue(account))
}

func (s *GrpcServer) GetAccount(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	account, err := s.core.GetAccount(ctx, accountID(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(accountValue(account))
}

func (s *GrpcServer) Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount, err := intField(req, "amount")
	if err != nil {
		return nil, err
	}
	balance, err := s.core.Deposit(ctx, accountID(ctx), amount, stringField(req, "method"))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"balance": balance})
}

func (s *GrpcServer) Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount, err := intField(req, "amount")
	if err != nil {
		return nil, err
	}
	balance, err := s.core.Transfer(ctx, accountID(ctx), stringField(req, "to"), amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"balance": balance})
}

// Withdraw 送出提款申請，回傳申請編號與扣款後餘額
func (s *GrpcServer) Withdraw(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount, err := intField(req, "amount")
	if err != nil {
		return nil, err
	}
	id := accountID(ctx)
	requestID, err := s.core.Withdraw(ctx, id, amount)
	if err != nil {
		return nil, toStatus(err)
	}

	// 餘額為 best effort，申請已成立
	fields := map[string]any{"request_id": requestID}
	if account, err := s.core.GetAccount(ctx, id); err == nil {
		fields["balance"] = account.Balance
	}
	return reply(fields)
}

func (s *GrpcServer) History(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	requests, err := s.core.History(ctx, accountID(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"requests": requestsValue(requests)})
}

func (s *GrpcServer) Recharge(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount, err := intField(req, "amount")
	if err != nil {
		return nil, err
	}
	balance, err := s.core.Recharge(ctx, accountID(ctx), domain.Recharge{
		Mobile:   stringField(req, "mobile"),
		Operator: stringField(req, "operator"),
		Amount:   amount,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"balance": balance})
}

func (s *GrpcServer) UpdateProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	account, err := s.core.UpdateProfile(ctx, accountID(ctx), domain.ProfileUpdate{
		Name:       optionalString(req, "name"),
		Credential: optionalString(req, "new_credential"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(accountValue(account))
}

func (s *GrpcServer) SetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	st, err := domain.ParseAccountStatus(stringField(req, "status"))
	if err != nil {
		return nil, toStatus(err)
	}
	id := stringField(req, "id")
	if err := s.core.SetStatus(ctx, id, st); err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"id": id, "status": string(st)})
}

func (s *GrpcServer) Approve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	requestID, err := requestIDField(req, "request_id")
	if err != nil {
		return nil, err
	}
	request, err := s.core.Approve(ctx, requestID)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(requestValue(request))
}

func (s *GrpcServer) Reject(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	requestID, err := requestIDField(req, "request_id")
	if err != nil {
		return nil, err
	}
	request, err := s.core.Reject(ctx, requestID)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(requestValue(request))
}

func (s *GrpcServer) Stats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return reply(statsValue(s.core.Stats(ctx)))
}

func (s *GrpcServer) Dashboard(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	d := s.core.Dashboard(ctx)
	return reply(map[string]any{
		"accounts":      d.Accounts,
		"total_balance": d.TotalBalance,
		"withdrawals":   statsValue(d.Withdrawals),
	})
}

func (s *GrpcServer) ListRequests(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	filter, err := filterFields(req)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"requests": requestsValue(s.core.ListRequests(ctx, filter))})
}

// Export data 為檔案內容 (structpb 會以 base64 編碼 []byte)
func (s *GrpcServer) Export(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	filter, err := filterFields(req)
	if err != nil {
		return nil, err
	}
	format := stringField(req, "format")
	if format == "" {
		format = "csv"
	}
	data, contentType, err := s.core.Export(ctx, format, filter)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{
		"format":       format,
		"content_type": contentType,
		"data":         data,
	})
}

func filterFields(req *structpb.Struct) (domain.WithdrawalFilter, error) {
	filter := domain.WithdrawalFilter{AccountID: stringField(req, "account_id")}
	if raw := stringField(req, "status"); raw != "" {
		st, err := domain.ParseWithdrawalStatus(raw)
		if err != nil {
			return filter, status.Errorf(codes.InvalidArgument, "unknown withdrawal status %q", raw)
		}
		filter.Status = st
	}
	return filter, nil
}

var _ WalletServiceServer = (*GrpcServer)(nil)
