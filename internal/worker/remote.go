package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/synapseflow/compute-orchestrator/internal/platform/logger"
	"github.com/synapseflow/compute-orchestrator/internal/task"
)

// RemoteClient is the minimum contract this worker needs from an
// out-of-process worker endpoint; the RPC transport itself is out of
// scope here.
type RemoteClient interface {
	Ping(ctx context.Context, url, authToken string) error
	Invoke(ctx context.Context, url, authToken string, payload map[string]interface{}) (map[string]interface{}, error)
}

// RemoteWorker proxies to an external orchestrator node over an RPC this
// package does not implement, authenticating with a signed JWT.
type RemoteWorker struct {
	base
	url       string
	authToken string
	client    RemoteClient
	log       logger.Logger
}

// RemoteWorkerClaims is the JWT payload minted for a remote worker.
type RemoteWorkerClaims struct {
	WorkerID string `json:"worker_id"`
	jwt.RegisteredClaims
}

// MintAuthToken signs a short-lived token identifying workerID, using
// secret as the HMAC key. The remote worker endpoint validates this token
// on its own RPC boundary.
func MintAuthToken(workerID, secret string, ttl time.Duration) (string, error) {
	claims := RemoteWorkerClaims{
		WorkerID: workerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   workerID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// NewRemoteWorker creates a remote worker advertising caps plus
// CapabilityRemote, authenticating with authToken (typically minted by
// MintAuthToken). CapabilityRemote marks the worker as crossing a network
// boundary, independent of whatever task kinds it otherwise advertises.
func NewRemoteWorker(id, url, authToken string, concurrencyCap int, caps map[Capability]struct{}, client RemoteClient, log logger.Logger) *RemoteWorker {
	merged := make(map[Capability]struct{}, len(caps)+1)
	for c := range caps {
		merged[c] = struct{}{}
	}
	merged[CapabilityRemote] = struct{}{}
	return &RemoteWorker{
		base:      newBase(id, "remote", merged, concurrencyCap),
		url:       url,
		authToken: authToken,
		client:    client,
		log:       log,
	}
}

func (w *RemoteWorker) Start(ctx context.Context) bool {
	if err := w.client.Ping(ctx, w.url, w.authToken); err != nil {
		w.log.Warn("remote worker failed to start", "worker_id", w.id, "url", w.url, "error", err)
		return false
	}
	w.setStatus(StatusIdle)
	return true
}

func (w *RemoteWorker) Stop(ctx context.Context) {
	w.setStatus(StatusDraining)
	w.setStatus(StatusStopped)
}

func (w *RemoteWorker) CanHandle(t *task.Task) bool {
	cap, ok := capabilityFor(t.Kind)
	if ok && !HasCapability(w.caps, cap) {
		return false
	}
	return w.canHandleBase()
}

func (w *RemoteWorker) Submit(ctx context.Context, t *task.Task) *task.Result {
	release := w.acquire()
	defer release()

	start := time.Now()
	result := w.execute(ctx, t)
	w.recordResult(result, time.Since(start).Milliseconds())
	return result
}

func (w *RemoteWorker) execute(ctx context.Context, t *task.Task) (result *task.Result) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("remote worker panicked", "worker_id", w.id, "recovered", r)
			result = &task.Result{
				Success:   false,
				Error:     fmt.Sprintf("remote worker panicked: %v", r),
				WorkerID:  w.id,
				Timestamp: time.Now(),
			}
		}
	}()

	runCtx := ctx
	var cancel context.CancelFunc
	if t.Requirements.MaxRuntimeSeconds > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(t.Requirements.MaxRuntimeSeconds*float64(time.Second)))
		defer cancel()
	}

	output, err := w.client.Invoke(runCtx, w.url, w.authToken, t.Payload)
	if err != nil {
		return &task.Result{
			Success:   false,
			Error:     fmt.Sprintf("remote worker invocation failed: %v", err),
			WorkerID:  w.id,
			Timestamp: time.Now(),
		}
	}

	return &task.Result{
		Success:   true,
		Data:      output,
		WorkerID:  w.id,
		Timestamp: time.Now(),
	}
}

func (w *RemoteWorker) HealthCheck(ctx context.Context) bool {
	err := w.client.Ping(ctx, w.url, w.authToken)
	w.markHealthChecked(err == nil)
	return err == nil
}
