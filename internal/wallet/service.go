package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quickbite/internal/apperr"
	"quickbite/internal/auth"
	"quickbite/internal/logger"
	"quickbite/internal/models"
	"quickbite/internal/pricing"
	"quickbite/internal/realtime"
	"quickbite/internal/utils"
)

// DB is the wallet-side storage surface.
type DB interface {
	EnsureWallet(ctx context.Context, ownerType, ownerID string) (*models.WalletAccount, error)
	GetWalletByCustomerCode(ctx context.Context, customerCode string) (*models.WalletAccount, error)
	SetProviderLink(ctx context.Context, walletID, customerCode string, virtualAccount map[string]interface{}) error
	Credit(ctx context.Context, walletID string, amount float64) error
	DebitIfSufficient(ctx context.Context, walletID string, amount float64) (bool, error)
	InsertTransaction(ctx context.Context, tx *models.WalletTransaction) (bool, error)
	GetTransactionByReference(ctx context.Context, reference string) (*models.WalletTransaction, error)
	ResolveTransactionIfPending(ctx context.Context, reference, status string) (bool, error)
	ListTransactions(ctx context.Context, walletID string) ([]models.WalletTransaction, error)
	InsertLedgerEntry(ctx context.Context, entry *models.EarningsLedgerEntry) (bool, error)
	GetRecipient(ctx context.Context, ownerType, ownerID string) (*models.TransferRecipient, error)
	SaveRecipient(ctx context.Context, rec *models.TransferRecipient) error
}

// Locker serializes balance mutations per wallet.
type Locker interface {
	Acquire(ctx context.Context, walletID string) (string, error)
	Release(ctx context.Context, walletID, token string)
}

// Provider is the payment-provider surface the wallet consumes.
type Provider interface {
	CreateCustomer(ctx context.Context, email, firstName, lastName, phone string) (string, error)
	CreateDedicatedAccount(ctx context.Context, customerCode string) (map[string]interface{}, error)
	CreateTransferRecipient(ctx context.Context, name, accountNumber, bankCode string) (string, error)
	InitiateTransfer(ctx context.Context, amount float64, recipientCode, reference, reason string) error
}

type Notifier interface {
	Emit(room, event string, payload interface{})
}

type Service struct {
	db       DB
	lock     Locker
	provider Provider
	notifier Notifier
	log      *logger.Logger

	commissionRate float64
}

func NewService(db DB, lock Locker, provider Provider, notifier Notifier, commissionRate float64, log *logger.Logger) *Service {
	return &Service{
		db:             db,
		lock:           lock,
		provider:       provider,
		notifier:       notifier,
		commissionRate: commissionRate,
		log:            log,
	}
}

func (s *Service) EnsureWallet(ctx context.Context, ownerType, ownerID string) (*models.WalletAccount, error) {
	return s.db.EnsureWallet(ctx, ownerType, ownerID)
}

// Split is the money breakdown for one order.
type Split struct {
	Commission        float64
	RestaurantEarning float64
	DriverEarning     float64
}

// ComputeSplit applies the platform commission to the order's subtotal.
// Commission comes out of the food revenue; the delivery fee passes through
// to the driver untouched.
func (s *Service) ComputeSplit(ord *models.Order) Split {
	commission := pricing.Round2(ord.Subtotal * (s.commissionRate / 100))
	return Split{
		Commission:        commission,
		RestaurantEarning: pricing.Round2(ord.Subtotal + ord.Tax - commission),
		DriverEarning:     ord.DeliveryFee,
	}
}

// AccrueRestaurantEarning posts the restaurant's share for a paid order.
// The (order_id, trigger) unique guard makes a second invocation a no-op.
func (s *Service) AccrueRestaurantEarning(ctx context.Context, ord *models.Order) error {
	wallet, err := s.db.EnsureWallet(ctx, models.OwnerRestaurant, ord.RestaurantID)
	if err != nil {
		return fmt.Errorf("ensuring restaurant wallet: %w", err)
	}

	token, err := s.lock.Acquire(ctx, wallet.ID)
	if err != nil {
		return err
	}
	defer s.lock.Release(ctx, wallet.ID, token)

	split := s.ComputeSplit(ord)
	entry := &models.EarningsLedgerEntry{
		ID:                 uuid.NewString(),
		OrderID:            ord.ID,
		RestaurantID:       ord.RestaurantID,
		DriverID:           ord.DriverID,
		Trigger:            models.TriggerPayment,
		Subtotal:           ord.Subtotal,
		Tax:                ord.Tax,
		DeliveryFee:        ord.DeliveryFee,
		PlatformCommission: split.Commission,
		RestaurantEarning:  split.RestaurantEarning,
		DriverEarning:      split.DriverEarning,
		Status:             models.LedgerAccrued,
		CreatedAt:          time.Now(),
	}
	inserted, err := s.db.InsertLedgerEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("writing ledger entry: %w", err)
	}
	if !inserted {
		s.log.LogLedger("SKIP", ord.ID, "restaurant earning already accrued")
		return nil
	}

	if err := s.db.Credit(ctx, wallet.ID, split.RestaurantEarning); err != nil {
		return fmt.Errorf("crediting restaurant wallet: %w", err)
	}

	tx := &models.WalletTransaction{
		ID:          uuid.NewString(),
		WalletID:    wallet.ID,
		Type:        models.TxCredit,
		Amount:      split.RestaurantEarning,
		Reference:   fmt.Sprintf("order_%s_restaurant", ord.ID),
		Description: fmt.Sprintf("Earning for order %s", ord.ID),
		Status:      models.TxSuccess,
		CreatedAt:   time.Now(),
	}
	if _, err := s.db.InsertTransaction(ctx, tx); err != nil {
		return fmt.Errorf("recording restaurant credit: %w", err)
	}

	s.log.LogLedger("ACCRUED", ord.ID, fmt.Sprintf("restaurant %.2f, commission %.2f", split.RestaurantEarning, split.Commission))
	s.notifier.Emit(realtime.RestaurantRoom(ord.RestaurantID), realtime.EventPaymentUpdate, map[string]interface{}{
		"type":    "earning_accrued",
		"orderId": ord.ID,
		"amount":  split.RestaurantEarning,
	})
	return nil
}

// AccrueDriverEarning pays the delivery fee to the driver when the order is
// delivered. The fee is treated as immediately paid out, not held.
func (s *Service) AccrueDriverEarning(ctx context.Context, ord *models.Order) error {
	if ord.DriverID == "" {
		return apperr.Validation("order has no assigned driver")
	}

	wallet, err := s.db.EnsureWallet(ctx, models.OwnerDriver, ord.DriverID)
	if err != nil {
		return fmt.Errorf("ensuring driver wallet: %w", err)
	}

	token, err := s.lock.Acquire(ctx, wallet.ID)
	if err != nil {
		return err
	}
	defer s.lock.Release(ctx, wallet.ID, token)

	split := s.ComputeSplit(ord)
	entry := &models.EarningsLedgerEntry{
		ID:                 uuid.NewString(),
		OrderID:            ord.ID,
		RestaurantID:       ord.RestaurantID,
		DriverID:           ord.DriverID,
		Trigger:            models.TriggerDelivery,
		Subtotal:           ord.Subtotal,
		Tax:                ord.Tax,
		DeliveryFee:        ord.DeliveryFee,
		PlatformCommission: split.Commission,
		RestaurantEarning:  split.RestaurantEarning,
		DriverEarning:      split.DriverEarning,
		Status:             models.LedgerPaidOut,
		CreatedAt:          time.Now(),
	}
	inserted, err := s.db.InsertLedgerEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("writing ledger entry: %w", err)
	}
	if !inserted {
		s.log.LogLedger("SKIP", ord.ID, "driver earning already accrued")
		return nil
	}

	if err := s.db.Credit(ctx, wallet.ID, split.DriverEarning); err != nil {
		return fmt.Errorf("crediting driver wallet: %w", err)
	}

	tx := &models.WalletTransaction{
		ID:          uuid.NewString(),
		WalletID:    wallet.ID,
		Type:        models.TxCredit,
		Amount:      split.DriverEarning,
		Reference:   fmt.Sprintf("order_%s_driver", ord.ID),
		Description: fmt.Sprintf("Delivery fee for order %s", ord.ID),
		Status:      models.TxSuccess,
		CreatedAt:   time.Now(),
	}
	if _, err := s.db.InsertTransaction(ctx, tx); err != nil {
		return fmt.Errorf("recording driver credit: %w", err)
	}

	s.log.LogLedger("ACCRUED", ord.ID, fmt.Sprintf("driver %.2f", split.DriverEarning))
	s.notifier.Emit(realtime.UserRoom(ord.DriverID), realtime.EventPaymentUpdate, map[string]interface{}{
		"type":    "earning_accrued",
		"orderId": ord.ID,
		"amount":  split.DriverEarning,
	})
	return nil
}

// BankDetails is the payout destination for a withdrawal.
type BankDetails struct {
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	BankCode      string `json:"bankCode"`
}

// Withdraw reserves the amount pessimistically: the balance drops the moment
// the transfer is requested, and comes back only if the provider later
// reports failure.
func (s *Service) Withdraw(ctx context.Context, ownerType, ownerID string, amount float64, bank BankDetails) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, apperr.InvalidAmount("withdrawal amount must be positive")
	}
	if bank.AccountNumber == "" || bank.BankCode == "" {
		return nil, apperr.Validation("accountNumber and bankCode are required")
	}

	wallet, err := s.db.EnsureWallet(ctx, ownerType, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ensuring wallet: %w", err)
	}

	token, err := s.lock.Acquire(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	defer s.lock.Release(ctx, wallet.ID, token)

	if amount > wallet.Balance {
		return nil, apperr.InsufficientBalance("withdrawal exceeds wallet balance")
	}

	recipientCode, err := s.resolveRecipient(ctx, ownerType, ownerID, bank)
	if err != nil {
		return nil, err
	}

	debited, err := s.db.DebitIfSufficient(ctx, wallet.ID, amount)
	if err != nil {
		return nil, fmt.Errorf("debiting wallet: %w", err)
	}
	if !debited {
		return nil, apperr.InsufficientBalance("withdrawal exceeds wallet balance")
	}

	reference := utils.GenerateReference("wd")
	tx := &models.WalletTransaction{
		ID:          uuid.NewString(),
		WalletID:    wallet.ID,
		Type:        models.TxDebit,
		Amount:      amount,
		Reference:   reference,
		Description: fmt.Sprintf("Withdrawal to %s", bank.AccountNumber),
		Status:      models.TxPending,
		CreatedAt:   time.Now(),
	}
	if _, err := s.db.InsertTransaction(ctx, tx); err != nil {
		// Put the reserved funds back, the withdrawal never happened.
		if cerr := s.db.Credit(ctx, wallet.ID, amount); cerr != nil {
			s.log.Error("WALLET", fmt.Sprintf("Refund after failed tx insert on wallet %s: %v", wallet.ID, cerr))
		}
		return nil, fmt.Errorf("recording withdrawal: %w", err)
	}

	if err := s.provider.InitiateTransfer(ctx, amount, recipientCode, reference, "Wallet withdrawal"); err != nil {
		if _, ferr := s.db.ResolveTransactionIfPending(ctx, reference, models.TxFailed); ferr == nil {
			if cerr := s.db.Credit(ctx, wallet.ID, amount); cerr != nil {
				s.log.Error("WALLET", fmt.Sprintf("Refund after failed transfer init on wallet %s: %v", wallet.ID, cerr))
			}
		}
		return nil, err
	}

	s.log.LogLedger("WITHDRAW", reference, fmt.Sprintf("wallet %s, amount %.2f", wallet.ID, amount))
	return tx, nil
}

func (s *Service) resolveRecipient(ctx context.Context, ownerType, ownerID string, bank BankDetails) (string, error) {
	if rec, err := s.db.GetRecipient(ctx, ownerType, ownerID); err == nil {
		return rec.RecipientCode, nil
	}

	code, err := s.provider.CreateTransferRecipient(ctx, bank.AccountName, bank.AccountNumber, bank.BankCode)
	if err != nil {
		return "", err
	}
	rec := &models.TransferRecipient{
		ID:            uuid.NewString(),
		OwnerType:     ownerType,
		OwnerID:       ownerID,
		RecipientCode: code,
		Details: map[string]interface{}{
			"account_name":   bank.AccountName,
			"account_number": bank.AccountNumber,
			"bank_code":      bank.BankCode,
		},
		CreatedAt: time.Now(),
	}
	if err := s.db.SaveRecipient(ctx, rec); err != nil {
		s.log.Warn("WALLET", fmt.Sprintf("Caching recipient for %s/%s failed: %v", ownerType, ownerID, err))
	}
	return code, nil
}

// Setup links the wallet to the payment provider: a customer record plus a
// dedicated virtual account for top-ups.
func (s *Service) Setup(ctx context.Context, actor *auth.Claims, ownerType, ownerID string) (*models.WalletAccount, error) {
	wallet, err := s.db.EnsureWallet(ctx, ownerType, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ensuring wallet: %w", err)
	}
	if wallet.PaystackCustomerCode != "" {
		return wallet, nil
	}

	// The provider only requires an email; name fields stay blank rather
	// than carrying unrelated identifiers.
	customerCode, err := s.provider.CreateCustomer(ctx, actor.Email, "", "", "")
	if err != nil {
		return nil, err
	}
	virtualAccount, err := s.provider.CreateDedicatedAccount(ctx, customerCode)
	if err != nil {
		return nil, err
	}
	if err := s.db.SetProviderLink(ctx, wallet.ID, customerCode, virtualAccount); err != nil {
		return nil, fmt.Errorf("linking wallet to provider: %w", err)
	}

	wallet.PaystackCustomerCode = customerCode
	wallet.PaystackVirtualAccount = virtualAccount
	return wallet, nil
}

func (s *Service) Balance(ctx context.Context, ownerType, ownerID string) (*models.WalletAccount, error) {
	return s.db.EnsureWallet(ctx, ownerType, ownerID)
}

func (s *Service) Transactions(ctx context.Context, ownerType, ownerID string) ([]models.WalletTransaction, error) {
	wallet, err := s.db.EnsureWallet(ctx, ownerType, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ensuring wallet: %w", err)
	}
	return s.db.ListTransactions(ctx, wallet.ID)
}

// HandleChargeSuccess credits a wallet top-up received through the provider's
// virtual account. The unique reference makes replays no-ops.
func (s *Service) HandleChargeSuccess(ctx context.Context, customerCode, reference string, amountMinor int64) error {
	wallet, err := s.db.GetWalletByCustomerCode(ctx, customerCode)
	if err != nil {
		return fmt.Errorf("no wallet for customer %s: %w", customerCode, err)
	}

	amount := pricing.Round2(float64(amountMinor) / 100)
	tx := &models.WalletTransaction{
		ID:          uuid.NewString(),
		WalletID:    wallet.ID,
		Type:        models.TxCredit,
		Amount:      amount,
		Reference:   reference,
		Description: "Wallet top-up",
		Status:      models.TxSuccess,
		CreatedAt:   time.Now(),
	}
	inserted, err := s.db.InsertTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("recording top-up: %w", err)
	}
	if !inserted {
		s.log.LogLedger("SKIP", reference, "charge already recorded")
		return nil
	}

	if err := s.db.Credit(ctx, wallet.ID, amount); err != nil {
		return fmt.Errorf("crediting top-up: %w", err)
	}
	s.log.LogLedger("TOPUP", reference, fmt.Sprintf("wallet %s, amount %.2f", wallet.ID, amount))
	return nil
}

// HandleTransferSuccess settles a pending withdrawal. The balance already
// dropped at withdraw time, so no further balance change happens here.
func (s *Service) HandleTransferSuccess(ctx context.Context, reference string) error {
	resolved, err := s.db.ResolveTransactionIfPending(ctx, reference, models.TxSuccess)
	if err != nil {
		return fmt.Errorf("resolving transfer %s: %w", reference, err)
	}
	if !resolved {
		s.log.LogLedger("SKIP", reference, "transfer already resolved")
	}
	return nil
}

// HandleTransferFailed refunds a failed withdrawal exactly once. The
// pending -> failed flip is the replay guard. Flip and refund are two
// separate writes: a crash between them leaves a failed debit with no
// matching credit, which reconciliation has to replay from the ledger.
func (s *Service) HandleTransferFailed(ctx context.Context, reference string) error {
	resolved, err := s.db.ResolveTransactionIfPending(ctx, reference, models.TxFailed)
	if err != nil {
		return fmt.Errorf("resolving transfer %s: %w", reference, err)
	}
	if !resolved {
		s.log.LogLedger("SKIP", reference, "transfer already resolved")
		return nil
	}

	tx, err := s.db.GetTransactionByReference(ctx, reference)
	if err != nil {
		return fmt.Errorf("loading transaction %s: %w", reference, err)
	}
	if err := s.db.Credit(ctx, tx.WalletID, tx.Amount); err != nil {
		return fmt.Errorf("refunding failed transfer %s: %w", reference, err)
	}
	s.log.LogLedger("REFUND", reference, fmt.Sprintf("wallet %s, amount %.2f", tx.WalletID, tx.Amount))
	return nil
}
