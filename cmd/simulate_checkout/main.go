// ==============================================================================
// CHECKOUT SIMULATION - cmd/simulate_checkout/main.go
// ==============================================================================
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"commerce/internal/coupon"
	"commerce/internal/domain"
	"commerce/internal/order"
	"commerce/internal/payment"
	"commerce/internal/repository/memory"
	"commerce/internal/settlement"
	"commerce/pkg/config"
	"commerce/pkg/logger"
	"commerce/pkg/validator"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type simulatedGateway struct{}

func (simulatedGateway) Charge(ctx context.Context, p domain.Payment) (domain.GatewayResult, domain.GatewayError) {
	return domain.GatewayResult{
		TransactionID: "TXN-" + uuid.New().String()[:8],
		ApprovalCode:  "APPROVED",
	}, nil
}

func (simulatedGateway) Refund(ctx context.Context, transactionID string, amount domain.Money, refundKey string) error {
	fmt.Printf("  refunding %s against %s (key %s)\n", amount, transactionID, refundKey)
	return nil
}

func main() {
	fmt.Println("=========================================================")
	fmt.Println("COMMERCE - CHECKOUT SIMULATION")
	fmt.Println("Demonstrating: coupon, payment, cancellation, settlement")
	fmt.Println("=========================================================")

	_ = godotenv.Load()
	cfg := config.Load()
	logg := logger.New("simulate_checkout")
	v := validator.New()

	couponRepo := memory.NewCouponRepository()
	orderRepo := memory.NewOrderRepository()
	paymentRepo := memory.NewPaymentRepository()
	settlementRepo := memory.NewSettlementRepository()
	locks := memory.NewLockStore()
	gateway := simulatedGateway{}

	couponSvc := coupon.NewService(couponRepo, v, logg)
	orderSvc := order.NewService(orderRepo, gateway, v, logg, cfg.Payment.CancelWindow)
	paymentSvc := payment.NewService(paymentRepo, orderRepo, gateway, locks, v, logg, cfg.Payment.IdempotencyTTL)
	settlementSvc := settlement.NewService(settlementRepo, paymentRepo, v, logg, cfg.Settlement.DefaultFeeRate)

	ctx := context.Background()
	now := time.Now()
	customerID := uuid.New()
	partnerID := uuid.New()

	fmt.Println("\n--- Step 1: Applying a fixed-amount coupon ---")
	c, err := domain.IssueCoupon(
		uuid.New(), "FIXED10", domain.FixedAmountRule{Amount: domain.Won(10000)},
		domain.Won(5000), now.Add(7*24*time.Hour), now,
	)
	if err != nil {
		log.Fatalf("Failed to issue coupon: %v", err)
	}
	if err := couponRepo.Create(ctx, c); err != nil {
		log.Fatalf("Failed to store coupon: %v", err)
	}

	smallOrderID := uuid.New()
	applied := couponSvc.Apply(ctx, coupon.ApplyCouponCommand{
		Code:        "FIXED10",
		OrderID:     smallOrderID,
		OrderAmount: decimal.NewFromInt(8000),
		Currency:    "KRW",
	})
	if applied.IsErr() {
		log.Fatalf("Coupon application failed: %v", applied.Err())
	}
	fmt.Printf("[PASS] 8,000 KRW order, 10,000 KRW coupon: discount %s, final %s\n",
		applied.Value().Discount, applied.Value().FinalAmount)

	fmt.Println("\n--- Step 2: Processing a payment, then retrying the same key ---")
	o, err := domain.NewOrder(uuid.New(), customerID, partnerID, domain.Won(300000), now.Add(time.Hour), now)
	if err != nil {
		log.Fatalf("Failed to create order: %v", err)
	}
	if err := orderRepo.Create(ctx, o); err != nil {
		log.Fatalf("Failed to store order: %v", err)
	}

	cmd := payment.ProcessPaymentCommand{
		OrderID:        o.ID,
		Method:         domain.CreditCard{CardNumberMasked: "****-1234", Installments: 1},
		IdempotencyKey: "checkout-" + o.ID.String(),
	}
	first := paymentSvc.Process(ctx, cmd)
	if first.IsErr() {
		log.Fatalf("Payment failed: %v", first.Err())
	}
	second := paymentSvc.Process(ctx, cmd)
	if second.IsErr() {
		log.Fatalf("Replay failed: %v", second.Err())
	}
	if first.Value().ID == second.Value().ID {
		fmt.Printf("[PASS] Both submissions returned payment %s, charged once\n", first.Value().ID)
	} else {
		fmt.Println("[FAIL] Replay produced a different payment")
	}

	fmt.Println("\n--- Step 3: Cancelling a paid order within the window ---")
	cancelled := orderSvc.Cancel(ctx, order.CancelOrderCommand{
		OrderID:   o.ID,
		Reason:    "customer_request",
		RefundKey: "refund-" + o.ID.String(),
	})
	if cancelled.IsErr() {
		log.Fatalf("Cancellation failed: %v", cancelled.Err())
	}
	if refund := cancelled.Value().Refund; refund != nil {
		fmt.Printf("[PASS] Order cancelled, refund of %s recorded\n", refund.Amount)
	} else {
		fmt.Println("[FAIL] Paid order cancelled without a refund")
	}

	fmt.Println("\n--- Step 4: Settling the partner's day ---")
	for _, amount := range []int64{100000, 200000} {
		extra, err := domain.NewOrder(uuid.New(), customerID, partnerID, domain.Won(amount), now.Add(time.Hour), now)
		if err != nil {
			log.Fatalf("Failed to create order: %v", err)
		}
		if err := orderRepo.Create(ctx, extra); err != nil {
			log.Fatalf("Failed to store order: %v", err)
		}
		res := paymentSvc.Process(ctx, payment.ProcessPaymentCommand{
			OrderID:        extra.ID,
			Method:         domain.SimplePay{Provider: "kakaopay"},
			IdempotencyKey: "checkout-" + extra.ID.String(),
		})
		if res.IsErr() {
			log.Fatalf("Payment failed: %v", res.Err())
		}
	}

	run := settlementSvc.Run(ctx, settlement.RunSettlementCommand{
		PartnerID: partnerID,
		Date:      now,
		Currency:  "KRW",
	})
	if run.IsErr() {
		log.Fatalf("Settlement failed: %v", run.Err())
	}
	st := run.Value()
	fmt.Printf("[PASS] Settled %d payments: total %s, fee %s, net %s\n",
		len(st.Items), st.TotalAmount, st.FeeAmount, st.NetAmount)

	approvedRes := settlementSvc.Approve(ctx, st.ID, "finance-team")
	if approvedRes.IsErr() {
		log.Fatalf("Approval failed: %v", approvedRes.Err())
	}
	paidRes := settlementSvc.Pay(ctx, st.ID, "PAYOUT-"+uuid.New().String()[:8])
	if paidRes.IsErr() {
		log.Fatalf("Payout failed: %v", paidRes.Err())
	}
	fmt.Printf("[PASS] Settlement %s approved and paid\n", st.ID)

	fmt.Println("\n=========================================================")
	fmt.Println("CHECKOUT SIMULATION COMPLETE")
	fmt.Println("=========================================================")
}
