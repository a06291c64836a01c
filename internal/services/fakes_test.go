package services

import (
	"context"
	"sort"
	"time"

	"eventpay/internal/models"
)

// --- In-memory fakes for the injected dependencies ---

type fakeStore struct {
	installments  map[uint]*models.Installment
	registrations map[uint]*models.Registration
	events        map[uint]*models.Event
	tickets       map[uint]*models.Ticket
	plans         map[uint]*models.PaymentPlan
	webhookEvents map[string]*models.WebhookEvent
	transactions  []models.Transaction
	nextID        uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		installments:  make(map[uint]*models.Installment),
		registrations: make(map[uint]*models.Registration),
		events:        make(map[uint]*models.Event),
		tickets:       make(map[uint]*models.Ticket),
		plans:         make(map[uint]*models.PaymentPlan),
		webhookEvents: make(map[string]*models.WebhookEvent),
		nextID:        1,
	}
}

func (f *fakeStore) id() uint {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeStore) addRegistration(reg models.Registration) *models.Registration {
	if reg.ID == 0 {
		reg.ID = f.id()
	}
	f.registrations[reg.ID] = &reg
	return &reg
}

func (f *fakeStore) addInstallment(inst models.Installment) *models.Installment {
	if inst.ID == 0 {
		inst.ID = f.id()
	}
	f.installments[inst.ID] = &inst
	return &inst
}

func (f *fakeStore) addPlan(plan models.PaymentPlan) *models.PaymentPlan {
	if plan.ID == 0 {
		plan.ID = f.id()
	}
	f.plans[plan.ID] = &plan
	return &plan
}

func (f *fakeStore) GetInstallment(ctx context.Context, id uint) (*models.Installment, error) {
	inst, ok := f.installments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

func (f *fakeStore) ListInstallmentsByRegistration(ctx context.Context, registrationID uint) ([]models.Installment, error) {
	var out []models.Installment
	for _, inst := range f.installments {
		if inst.RegistrationID == registrationID {
			out = append(out, *inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstallmentNumber < out[j].InstallmentNumber })
	return out, nil
}

func (f *fakeStore) ListOverdueCandidates(ctx context.Context, eventID *uint, now time.Time) ([]models.Installment, error) {
	var out []models.Installment
	for _, inst := range f.installments {
		if inst.Status == models.InstallmentStatusPaid || inst.Status == models.InstallmentStatusWaived {
			continue
		}
		if !inst.DueDate.Before(now) {
			continue
		}
		if eventID != nil {
			reg, ok := f.registrations[inst.RegistrationID]
			if !ok || reg.EventID != *eventID {
				continue
			}
		}
		cp := *inst
		if plan, ok := f.plans[inst.PaymentPlanID]; ok {
			cp.PaymentPlan = *plan
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateInstallments(ctx context.Context, installments []models.Installment) error {
	for i := range installments {
		installments[i].ID = f.id()
		cp := installments[i]
		f.installments[cp.ID] = &cp
	}
	return nil
}

func (f *fakeStore) ApplyLedgerMutation(ctx context.Context, installmentID uint, mutate func(inst *models.Installment) (*models.Transaction, error)) (*models.Installment, *models.Transaction, error) {
	inst, ok := f.installments[installmentID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	cp := *inst
	txn, err := mutate(&cp)
	if err != nil {
		return nil, nil, err
	}
	f.installments[installmentID] = &cp
	if txn != nil {
		txn.InstallmentID = cp.ID
		txn.RegistrationID = cp.RegistrationID
		txn.ID = f.id()
		f.transactions = append(f.transactions, *txn)
	}
	result := cp
	return &result, txn, nil
}

func (f *fakeStore) GetRegistration(ctx context.Context, id uint) (*models.Registration, error) {
	reg, ok := f.registrations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (f *fakeStore) FindRegistrationByStatus(ctx context.Context, eventID uint, email string, ticketID uint, status models.PaymentStatus) (*models.Registration, error) {
	var candidates []*models.Registration
	for _, reg := range f.registrations {
		if reg.EventID == eventID && reg.CustomerEmail == email && reg.TicketID == ticketID && reg.PaymentStatus == status {
			candidates = append(candidates, reg)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	cp := *candidates[0]
	return &cp, nil
}

func (f *fakeStore) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	reg.ID = f.id()
	cp := *reg
	f.registrations[cp.ID] = &cp
	return nil
}

func (f *fakeStore) SaveRegistration(ctx context.Context, reg *models.Registration) error {
	cp := *reg
	f.registrations[cp.ID] = &cp
	return nil
}

func (f *fakeStore) GetEvent(ctx context.Context, id uint) (*models.Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeStore) GetTicket(ctx context.Context, id uint) (*models.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) GetPaymentPlan(ctx context.Context, id uint) (*models.PaymentPlan, error) {
	plan, ok := f.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *plan
	return &cp, nil
}

func (f *fakeStore) InsertWebhookEventIfAbsent(ctx context.Context, ev *models.WebhookEvent) (bool, error) {
	if _, exists := f.webhookEvents[ev.EventID]; exists {
		return false, nil
	}
	ev.ID = f.id()
	cp := *ev
	f.webhookEvents[cp.EventID] = &cp
	return true, nil
}

func (f *fakeStore) UpdateWebhookEvent(ctx context.Context, eventID string, status models.WebhookEventStatus, errMsg string, registrationID *uint) error {
	ev, ok := f.webhookEvents[eventID]
	if !ok {
		return ErrNotFound
	}
	ev.Status = status
	ev.Error = errMsg
	if registrationID != nil {
		ev.RegistrationID = registrationID
	}
	return nil
}

// transactionsFor returns the audit trail of one installment
func (f *fakeStore) transactionsFor(installmentID uint) []models.Transaction {
	var out []models.Transaction
	for _, txn := range f.transactions {
		if txn.InstallmentID == installmentID {
			out = append(out, txn)
		}
	}
	return out
}

type fakeGateway struct {
	validSignature string
	session        *GatewaySession
	lookupErr      error
	lookups        int
}

func (g *fakeGateway) VerifySignature(orderID, statusCode, grossAmount, signature string) bool {
	return signature == g.validSignature
}

func (g *fakeGateway) LookupSession(ctx context.Context, orderID string) (*GatewaySession, error) {
	g.lookups++
	if g.lookupErr != nil {
		return nil, g.lookupErr
	}
	return g.session, nil
}

type fakeNotifier struct {
	confirmed []uint
}

func (n *fakeNotifier) PaymentConfirmed(ctx context.Context, reg *models.Registration) error {
	n.confirmed = append(n.confirmed, reg.ID)
	return nil
}
