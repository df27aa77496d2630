package grpc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
)

// errorCodes domain 錯誤對應的 gRPC 狀態碼，未列出的一律 Internal
var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{domain.ErrNotFound, codes.NotFound},
	{domain.ErrDuplicateAccount, codes.AlreadyExists},
	{domain.ErrBadCredential, codes.Unauthenticated},
	{domain.ErrAccountBlocked, codes.PermissionDenied},
	{domain.ErrAccountNotApproved, codes.PermissionDenied},
	{domain.ErrAdminUnauthorized, codes.PermissionDenied},
	{domain.ErrInvalidAccount, codes.InvalidArgument},
	{domain.ErrInvalidAmount, codes.InvalidArgument},
	{domain.ErrInvalidStatus, codes.InvalidArgument},
	{domain.ErrInvalidProfile, codes.InvalidArgument},
	{domain.ErrInvalidRecharge, codes.InvalidArgument},
	{domain.ErrInvalidDepositMethod, codes.InvalidArgument},
	{domain.ErrSameAccount, codes.InvalidArgument},
	{domain.ErrUnknownFormat, codes.InvalidArgument},
	{domain.ErrInsufficientFunds, codes.FailedPrecondition},
	{domain.ErrInvalidState, codes.FailedPrecondition},
}

// toStatus 將 domain 錯誤轉為 gRPC status
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return status.Error(c.code, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}

func invalidField(name string, err error) error {
	return status.Errorf(codes.InvalidArgument, "field %q: %v", name, err)
}

func stringField(req *structpb.Struct, name string) string {
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

// optionalString 欄位存在才回傳指標
func optionalString(req *structpb.Struct, name string) *string {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil
	}
	s := v.GetStringValue()
	return &s
}

// intField JSON 數字一律是 float64，另外接受數字字串
func intField(req *structpb.Struct, name string) (int64, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, invalidField(name, errors.New("required"))
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := kind.NumberValue
		// float64(math.MaxInt64) 實際上是 2^63，已超出 int64
		if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, invalidField(name, fmt.Errorf("%v is not an integer", f))
		}
		return int64(f), nil
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(kind.StringValue, 10, 64)
		if err != nil {
			return 0, invalidField(name, err)
		}
		return n, nil
	}
	return 0, invalidField(name, errors.New("must be a number"))
}

func requestIDField(req *structpb.Struct, name string) (uint64, error) {
	n, err := intField(req, name)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, invalidField(name, errors.New("must be positive"))
	}
	return uint64(n), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func accountValue(a domain.Account) map[string]any {
	return map[string]any{
		"id":         a.ID,
		"name":       a.Name,
		"balance":    a.Balance,
		"status":     string(a.Status),
		"created_at": formatTime(a.CreatedAt),
		"updated_at": formatTime(a.UpdatedAt),
	}
}

func requestValue(w domain.WithdrawalRequest) map[string]any {
	return map[string]any{
		"id":         w.ID,
		"user":       w.AccountID,
		"amount":     w.Amount,
		"status":     string(w.Status),
		"created_at": formatTime(w.CreatedAt),
		"decided_at": formatTime(w.DecidedAt),
	}
}

func requestsValue(requests []domain.WithdrawalRequest) []any {
	list := make([]any, 0, len(requests))
	for _, w := range requests {
		list = append(list, requestValue(w))
	}
	return list
}

func statsValue(s domain.QueueStats) map[string]any {
	return map[string]any{
		"total":    s.Total,
		"pending":  s.Pending,
		"approved": s.Approved,
		"rejected": s.Rejected,
	}
}

// reply 組成回應，欄位型態不支援時回傳 Internal
func reply(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}
