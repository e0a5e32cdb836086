package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-placement/internal/core/domain"
)

const productKeyPrefix = "product:"

// Returns 1 when every key had enough stock and all were decremented,
// 0 when any key was short (nothing decremented), -i when KEYS[i] is missing.
var decrementStockScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
	local current = redis.call('HGET', key, 'quantity')
	if not current then
		return -i
	end
	if tonumber(current) < tonumber(ARGV[i]) then
		return 0
	end
end

for i, key in ipairs(KEYS) do
	redis.call('HINCRBY', key, 'quantity', -tonumber(ARGV[i]))
end

return 1
`)

// Restores every key, or none when any KEYS[i] is missing (returns -i).
var restoreStockScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
	if redis.call('EXISTS', key) == 0 then
		return -i
	end
end

for i, key in ipairs(KEYS) do
	redis.call('HINCRBY', key, 'quantity', tonumber(ARGV[i]))
end

return 1
`)

// Writes the product hash only when the key does not exist yet.
var loadProductScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// RedisInventory keeps product stock in Redis hashes and gates orders on it.
// Orders themselves live elsewhere, so it is paired with the compensating
// committer.
type RedisInventory struct {
	client *redis.Client
}

func NewRedisInventory(client *redis.Client) *RedisInventory {
	return &RedisInventory{client: client}
}

// SetProduct loads a catalog entry, overwriting any existing stock.
func (r *RedisInventory) SetProduct(ctx context.Context, product domain.Product) error {
	return r.client.HSet(ctx, productKeyPrefix+product.ID, productHash(product)).Err()
}

func (r *RedisInventory) FindAllByID(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(productIDs))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range productIDs {
			cmds[i] = pipe.HGetAll(ctx, productKeyPrefix+id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	products := make([]domain.Product, 0, len(productIDs))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		product, err := productFromHash(productIDs[i], fields)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	return products, nil
}

func (r *RedisInventory) ApplyQuantityDeltas(ctx context.Context, updates []domain.InventoryUpdate) error {
	keys, args, merged := stockScriptArgs(updates)

	result, err := decrementStockScript.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	switch {
	case result == 1:
		return nil
	case result < 0:
		return &domain.ProductNotFoundError{ProductID: merged[-result-1].ProductID}
	default:
		return fmt.Errorf("%w: stock changed", domain.ErrTransactionConflict)
	}
}

func (r *RedisInventory) RevertQuantityDeltas(ctx context.Context, updates []domain.InventoryUpdate) error {
	keys, args, merged := stockScriptArgs(updates)

	result, err := restoreStockScript.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if result < 0 {
		return fmt.Errorf("restore stock: %w", &domain.ProductNotFoundError{ProductID: merged[-result-1].ProductID})
	}
	return nil
}

// LoadProduct copies a catalog entry into Redis unless the product is already
// there, so a restart keeps the stock Redis has been gating. It reports
// whether the product was written.
func (r *RedisInventory) LoadProduct(ctx context.Context, product domain.Product) (bool, error) {
	fields := productHash(product)
	args := make([]any, 0, 2*len(fields))
	for k, v := range fields {
		args = append(args, k, v)
	}

	loaded, err := loadProductScript.Run(ctx, r.client, []string{productKeyPrefix + product.ID}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("load product %s: %w", product.ID, err)
	}
	return loaded == 1, nil
}

func stockScriptArgs(updates []domain.InventoryUpdate) ([]string, []any, []domain.InventoryUpdate) {
	merged := sortedUpdates(updates)
	keys := make([]string, len(merged))
	args := make([]any, len(merged))
	for i, u := range merged {
		keys[i] = productKeyPrefix + u.ProductID
		args[i] = u.Deduct
	}
	return keys, args, merged
}

func productHash(product domain.Product) map[string]any {
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	return map[string]any{
		"name":       product.Name,
		"price":      product.Price.String(),
		"quantity":   product.Quantity,
		"created_at": product.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": now.Format(time.RFC3339Nano),
	}
}

func productFromHash(id string, fields map[string]string) (domain.Product, error) {
	quantity, err := strconv.Atoi(fields["quantity"])
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse quantity of product %s: %w", id, err)
	}

	price, err := decimal.NewFromString(fields["price"])
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse price of product %s: %w", id, err)
	}

	product := domain.Product{
		ID:       id,
		Name:     fields["name"],
		Price:    price,
		Quantity: quantity,
	}
	product.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	product.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])

	return product, nil
}
