package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// config, utils and middlewares all read these keys.
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyToken         = ContextKey("Token")
	ContextKeyCompanyId     = ContextKey("CompanyId")
	ContextKeyFiscalYearId  = ContextKey("FiscalYearId")
	ContextKeyUserId        = ContextKey("UserId")
	ContextKeyCorrelationId = ContextKey("CorrelationId")

	// ContextKeyIsAdmin is true for platform admins. Used for tenant-scope bypass.
	ContextKeyIsAdmin = ContextKey("IsAdmin")

	// ContextKeySkipTenantScope forces tenant scoping to be disabled for the request.
	// Use sparingly (maintenance tools only).
	ContextKeySkipTenantScope = ContextKey("SkipTenantScope")
)

// RequestContext is the tenant a request acts for.
type RequestContext struct {
	CompanyId    int `json:"company_id"`
	FiscalYearId int `json:"fiscal_year_id"`
	UserId       int `json:"user_id"`
}

func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	ctx = Set(ctx, ContextKeyCompanyId, rc.CompanyId)
	ctx = Set(ctx, ContextKeyFiscalYearId, rc.FiscalYearId)
	return Set(ctx, ContextKeyUserId, rc.UserId)
}

// RequestContextFrom reports false when no company is attached to ctx.
func RequestContextFrom(ctx context.Context) (RequestContext, bool) {
	companyId, ok := GetInt(ctx, ContextKeyCompanyId)
	if !ok || companyId == 0 {
		return RequestContext{}, false
	}
	fiscalYearId, _ := GetInt(ctx, ContextKeyFiscalYearId)
	userId, _ := GetInt(ctx, ContextKeyUserId)
	return RequestContext{CompanyId: companyId, FiscalYearId: fiscalYearId, UserId: userId}, true
}

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func GetBool(ctx context.Context, key ContextKey) (bool, bool) {
	v, ok := ctx.Value(key).(bool)
	return v, ok
}

func GetInt(ctx context.Context, key ContextKey) (int, bool) {
	v, ok := ctx.Value(key).(int)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
