package services

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
)

// GatewaySession is a provider-neutral view of a checkout session, as
// returned by the gateway's lookup API
type GatewaySession struct {
	OrderID       string
	TransactionID string
	Status        string
	PaymentType   string
	GrossAmount   float64
}

// Gateway is the outbound payment gateway surface the reconciliation
// engine depends on. Injected so tests can substitute a fake.
type Gateway interface {
	VerifySignature(orderID, statusCode, grossAmount, signature string) bool
	LookupSession(ctx context.Context, orderID string) (*GatewaySession, error)
}

// MidtransService wraps the Midtrans Core API client
type MidtransService struct {
	coreClient coreapi.Client
	serverKey  string
	cache      *RedisCache
}

// NewMidtransService builds a gateway client. cache may be nil; when set,
// session lookups are cached briefly to absorb bursts of retried webhooks
// for the same order.
func NewMidtransService(serverKey string, production bool, cache *RedisCache) *MidtransService {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	var c coreapi.Client
	c.New(serverKey, env)

	return &MidtransService{
		coreClient: c,
		serverKey:  serverKey,
		cache:      cache,
	}
}

// VerifySignature checks the notification signature:
// sha512(order_id + status_code + gross_amount + serverKey)
func (s *MidtransService) VerifySignature(orderID, statusCode, grossAmount, signature string) bool {
	raw := orderID + statusCode + grossAmount + s.serverKey
	sum := sha512.Sum512([]byte(raw))
	want := hex.EncodeToString(sum[:])
	got := strings.ToLower(signature)
	return got != "" && subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// LookupSession queries the gateway for the current state of an order
func (s *MidtransService) LookupSession(ctx context.Context, orderID string) (*GatewaySession, error) {
	if s.cache != nil {
		return GetOrSet(s.cache, ctx, "gateway:session:"+orderID, 30*time.Second, func() (*GatewaySession, error) {
			return s.lookup(orderID)
		})
	}
	return s.lookup(orderID)
}

func (s *MidtransService) lookup(orderID string) (*GatewaySession, error) {
	resp, err := s.coreClient.CheckTransaction(orderID)
	if err != nil {
		return nil, fmt.Errorf("midtrans check transaction: %v", err)
	}

	gross, _ := strconv.ParseFloat(resp.GrossAmount, 64)
	return &GatewaySession{
		OrderID:       resp.OrderID,
		TransactionID: resp.TransactionID,
		Status:        resp.TransactionStatus,
		PaymentType:   resp.PaymentType,
		GrossAmount:   gross,
	}, nil
}
