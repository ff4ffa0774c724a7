package leader

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Elector decide qué instancia ejecuta una tarea periódica.
type Elector interface {
	// TryAcquire obtiene o renueva el liderazgo. Devuelve false si otra instancia lo tiene.
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Obtiene el lock si está libre o lo renueva si ya es nuestro, en una sola operación.
var acquireScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	return 1
end
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
	return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLeaderElection es un lease con TTL en una clave de Redis.
type RedisLeaderElection struct {
	client     *redis.Client
	key        string
	instanceID string
	ttl        time.Duration
}

var _ Elector = (*RedisLeaderElection)(nil)

func NewRedisLeaderElection(client *redis.Client, key, instanceID string, ttl time.Duration) *RedisLeaderElection {
	return &RedisLeaderElection{
		client:     client,
		key:        key,
		instanceID: instanceID,
		ttl:        ttl,
	}
}

func (r *RedisLeaderElection) TryAcquire(ctx context.Context) (bool, error) {
	res, err := acquireScript.Run(ctx, r.client, []string{r.key}, r.instanceID, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (r *RedisLeaderElection) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, r.client, []string{r.key}, r.instanceID).Err()
}

// AlwaysLeader se usa con una sola instancia o sin Redis.
type AlwaysLeader struct{}

func (AlwaysLeader) TryAcquire(context.Context) (bool, error) { return true, nil }
func (AlwaysLeader) Release(context.Context) error            { return nil }

var _ Elector = AlwaysLeader{}
