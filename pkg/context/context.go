// Package context carries request and evaluation scoped values on a context.Context.
package context

import "context"

type valueKey int

const (
	requestIDKey valueKey = iota
	routeKey
	remoteIPKey
	shopIDKey
	orderIDKey
)

// logFields maps each key to the log field it is reported under.
var logFields = []struct {
	key  valueKey
	name string
}{
	{requestIDKey, "request_id"},
	{shopIDKey, "shop_id"},
	{orderIDKey, "order_id"},
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string { return get(ctx, requestIDKey) }

func SetRoute(ctx context.Context, route string) context.Context {
	return with(ctx, routeKey, route)
}

func GetRoute(ctx context.Context) string { return get(ctx, routeKey) }

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return with(ctx, remoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string { return get(ctx, remoteIPKey) }

// SetShopID scopes the context to a single merchant.
func SetShopID(ctx context.Context, shopID string) context.Context {
	return with(ctx, shopIDKey, shopID)
}

func GetShopID(ctx context.Context) string { return get(ctx, shopIDKey) }

// SetOrderID marks the order an evaluation is running for.
func SetOrderID(ctx context.Context, orderID string) context.Context {
	return with(ctx, orderIDKey, orderID)
}

func GetOrderID(ctx context.Context) string { return get(ctx, orderIDKey) }

// LogFields returns the request, shop and order identifiers set on ctx, keyed by log field name.
// Unset values are omitted.
func LogFields(ctx context.Context) map[string]any {
	fields := make(map[string]any, len(logFields))
	for _, f := range logFields {
		if v := get(ctx, f.key); v != "" {
			fields[f.name] = v
		}
	}
	return fields
}

func with(ctx context.Context, key valueKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func get(ctx context.Context, key valueKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
