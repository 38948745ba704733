package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/models"
)

var errNotLoaded = errors.New("store not loaded")

const staleMsg = "Os dados foram alterados em outro terminal. Atualize a tela e tente novamente."

func (s *Store) restaurantID() (uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return 0, errNotLoaded
	}
	return s.restaurant.ID, nil
}

func notFound(kind string, id uint) error {
	return fmt.Errorf("%w: %s %d", gateway.ErrNotFound, kind, id)
}

// AddTable creates a free table. Numbers are unique per restaurant.
func (s *Store) AddTable(ctx context.Context, number, capacity int) (models.Table, error) {
	const msg = "Não foi possível adicionar a mesa."
	if number <= 0 {
		return models.Table{}, s.fail("add_table", "Informe um número de mesa válido.", invalid("number %d", number))
	}
	if capacity <= 0 {
		return models.Table{}, s.fail("add_table", "A capacidade deve ser maior que zero.", invalid("capacity %d", capacity))
	}
	rid, err := s.restaurantID()
	if err != nil {
		return models.Table{}, s.fail("add_table", msg, err)
	}

	s.mu.RLock()
	for _, t := range s.tables {
		if t.Number == number {
			s.mu.RUnlock()
			return models.Table{}, s.fail("add_table", fmt.Sprintf("A mesa %d já existe.", number),
				fmt.Errorf("%w: table number %d", gateway.ErrConstraint, number))
		}
	}
	s.mu.RUnlock()

	t := models.Table{RestaurantID: rid, Number: number, Capacity: capacity, Status: models.TableFree}
	if err := gateway.Create(ctx, s.gw, &t); err != nil {
		return models.Table{}, s.fail("add_table", msg, err)
	}

	s.mu.Lock()
	s.tables, _ = upsert(s.tables, t, false)
	s.mu.Unlock()
	return t, nil
}

// tableIntent runs a gateway table transition for a table this store knows
// and patches the table and the order it opened or closed.
func (s *Store) tableIntent(intent, msg string, id uint, call func() (gateway.TableChange, error)) (gateway.TableChange, error) {
	if _, ok := s.Table(id); !ok {
		return gateway.TableChange{}, s.fail(intent, "Mesa não encontrada.", notFound("table", id))
	}
	res, err := call()
	if err != nil {
		if errors.Is(err, gateway.ErrActiveItems) {
			msg = "A mesa possui itens em aberto. Finalize o pagamento."
		} else if errors.Is(err, gateway.ErrStaleVersion) {
			msg = staleMsg
		}
		return gateway.TableChange{}, s.fail(intent, msg, err)
	}

	s.mu.Lock()
	s.tables, _ = upsert(s.tables, res.Table, true)
	if o := res.Order; o != nil {
		if o.Status == models.OrderOpen {
			s.orders, _ = upsert(s.orders, *o, true)
		} else {
			s.dropOrderLocked(o.ID)
		}
	}
	s.mu.Unlock()
	return res, nil
}

// OccupyTable seats guests at a free table and opens its order.
func (s *Store) OccupyTable(ctx context.Context, id uint, server string) (models.Table, models.Order, error) {
	res, err := s.tableIntent("occupy_table", "Não foi possível abrir a mesa.", id, func() (gateway.TableChange, error) {
		return s.gw.OccupyTable(ctx, id, server)
	})
	if err != nil {
		return models.Table{}, models.Order{}, err
	}
	return res.Table, *res.Order, nil
}

// RequestPayment marks an occupied table as waiting for the bill.
func (s *Store) RequestPayment(ctx context.Context, id uint) (models.Table, error) {
	res, err := s.tableIntent("request_payment", "Não foi possível pedir a conta.", id, func() (gateway.TableChange, error) {
		return s.gw.RequestPayment(ctx, id)
	})
	return res.Table, err
}

// ReleaseTable frees a table without charging. It is refused while the open
// order still has active items; an empty open order is closed.
func (s *Store) ReleaseTable(ctx context.Context, id uint) (models.Table, error) {
	res, err := s.tableIntent("release_table", "Não foi possível liberar a mesa.", id, func() (gateway.TableChange, error) {
		return s.gw.ReleaseTable(ctx, id)
	})
	return res.Table, err
}

// DeleteTable removes a free table.
func (s *Store) DeleteTable(ctx context.Context, id uint) error {
	t, ok := s.Table(id)
	if !ok {
		return s.fail("delete_table", "Mesa não encontrada.", notFound("table", id))
	}
	if t.Status != models.TableFree {
		return s.fail("delete_table", "Não é possível excluir uma mesa ocupada.",
			fmt.Errorf("%w: table %d is %s", gateway.ErrInvalidTransition, id, t.Status))
	}
	if err := gateway.Remove(ctx, s.gw, &t); err != nil {
		return s.fail("delete_table", "Não foi possível excluir a mesa.", err)
	}

	s.mu.Lock()
	s.tables, _ = removeID(s.tables, id)
	s.mu.Unlock()
	return nil
}

// CreateOrder opens an order for an occupied table.
func (s *Store) CreateOrder(ctx context.Context, tableID uint) (models.Order, error) {
	if _, ok := s.Table(tableID); !ok {
		return models.Order{}, s.fail("create_order", "Mesa não encontrada.", notFound("table", tableID))
	}
	o, err := s.gw.OpenOrder(ctx, tableID)
	if err != nil {
		return models.Order{}, s.fail("create_order", "Não foi possível abrir a comanda.", err)
	}

	s.mu.Lock()
	s.orders, _ = upsert(s.orders, o, false)
	s.mu.Unlock()
	return o, nil
}

// AddItem adds qty units of a product to an open order.
func (s *Store) AddItem(ctx context.Context, orderID, productID uint, qty int, note string) (models.ItemView, error) {
	const msg = "Não foi possível adicionar o item."
	if qty <= 0 {
		return models.ItemView{}, s.fail("add_item", "A quantidade deve ser maior que zero.", invalid("quantity %d", qty))
	}
	s.mu.RLock()
	known := indexOf(s.orders, orderID) >= 0
	pi := indexOf(s.products, productID)
	available := pi >= 0 && s.products[pi].Available
	s.mu.RUnlock()
	if !known {
		return models.ItemView{}, s.fail("add_item", "Comanda não encontrada.", notFound("order", orderID))
	}
	if pi < 0 {
		return models.ItemView{}, s.fail("add_item", "Produto não encontrado.", notFound("product", productID))
	}
	if !available {
		return models.ItemView{}, s.fail("add_item", "Produto indisponível.",
			fmt.Errorf("%w: product %d is unavailable", gateway.ErrConstraint, productID))
	}

	res, err := s.gw.AddItem(ctx, orderID, productID, qty, strings.TrimSpace(note))
	if err != nil {
		return models.ItemView{}, s.fail("add_item", msg, err)
	}
	return s.applyRipple(res), nil
}

// UpdateItemStatus moves an item forward through the kitchen flow.
func (s *Store) UpdateItemStatus(ctx context.Context, itemID uint, status string) (models.ItemView, error) {
	s.mu.RLock()
	i := indexOf(s.items, itemID)
	var current models.OrderItem
	if i >= 0 {
		current = s.items[i].OrderItem
	}
	s.mu.RUnlock()
	if i < 0 {
		return models.ItemView{}, s.fail("update_item_status", "Item não encontrado.", notFound("order item", itemID))
	}
	if !current.CanTransition(status) {
		return models.ItemView{}, s.fail("update_item_status", "Este item não pode voltar para esse status.",
			fmt.Errorf("%w: item %d %s -> %s", gateway.ErrInvalidTransition, itemID, current.Status, status))
	}

	res, err := s.gw.UpdateItemStatus(ctx, itemID, status)
	if err != nil {
		return models.ItemView{}, s.fail("update_item_status", "Não foi possível atualizar o item.", err)
	}
	return s.applyRipple(res), nil
}

// RemoveItem deletes an item from its order.
func (s *Store) RemoveItem(ctx context.Context, itemID uint) error {
	s.mu.RLock()
	known := indexOf(s.items, itemID) >= 0
	s.mu.RUnlock()
	if !known {
		return s.fail("remove_item", "Item não encontrado.", notFound("order item", itemID))
	}
	res, err := s.gw.RemoveItem(ctx, itemID)
	if err != nil {
		return s.fail("remove_item", "Não foi possível remover o item.", err)
	}
	s.applyRipple(res)
	return nil
}

// applyRipple patches the item, its order and its table under one lock.
func (s *Store) applyRipple(res gateway.ItemRipple) models.ItemView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := s.viewLocked(res.Item, res.Order, res.Table)
	if res.Removed {
		s.items, _ = removeID(s.items, res.Item.ID)
	} else {
		s.items, _ = upsert(s.items, view, true)
	}
	s.orders, _ = upsert(s.orders, res.Order, true)
	s.tables, _ = upsert(s.tables, res.Table, true)
	return view
}

func (s *Store) viewLocked(it models.OrderItem, o models.Order, t models.Table) models.ItemView {
	v := models.ItemView{OrderItem: it, TableID: t.ID, TableNumber: t.Number, OrderStatus: o.Status}
	if i := indexOf(s.products, it.ProductID); i >= 0 {
		v.ProductName = s.products[i].Name
		v.Category = s.products[i].Category
	}
	return v
}

// FinalizePayment charges the table's open order and frees the table.
func (s *Store) FinalizePayment(ctx context.Context, tableID uint, method string) (gateway.PaymentResult, error) {
	if !models.ValidPaymentMethod(method) {
		return gateway.PaymentResult{}, s.fail("finalize_payment", "Forma de pagamento inválida.", invalid("payment method %q", method))
	}
	if _, ok := s.Table(tableID); !ok {
		return gateway.PaymentResult{}, s.fail("finalize_payment", "Mesa não encontrada.", notFound("table", tableID))
	}

	res, err := s.gw.FinalizePayment(ctx, tableID, method, s.actorID)
	if err != nil {
		msg := "Não foi possível finalizar o pagamento."
		if errors.Is(err, gateway.ErrNoOpenOrder) {
			msg = "Esta mesa não possui comanda aberta."
		}
		return gateway.PaymentResult{}, s.fail("finalize_payment", msg, err)
	}

	s.mu.Lock()
	s.tables, _ = upsert(s.tables, res.Table, true)
	s.dropOrderLocked(res.Order.ID)
	s.mu.Unlock()
	return res, nil
}

// dropOrderLocked removes a closed order and its items.
func (s *Store) dropOrderLocked(orderID uint) {
	s.orders, _ = removeID(s.orders, orderID)
	kept := s.items[:0]
	for _, v := range s.items {
		if v.OrderID != orderID {
			kept = append(kept, v)
		}
	}
	s.items = kept
}

func validateProduct(p models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("product name is empty")
	}
	if p.Price <= 0 {
		return invalid("price %.2f", p.Price)
	}
	if p.Stock < 0 || p.MinStock < 0 {
		return invalid("negative stock")
	}
	return nil
}

// CreateProduct adds a product to the restaurant's menu.
func (s *Store) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	if err := validateProduct(p); err != nil {
		return models.Product{}, s.fail("create_product", "Informe nome e preço válidos.", err)
	}
	rid, err := s.restaurantID()
	if err != nil {
		return models.Product{}, s.fail("create_product", "Não foi possível criar o produto.", err)
	}
	p.ID = 0
	p.Version = 0
	p.RestaurantID = rid
	p.Name = strings.TrimSpace(p.Name)
	if err := gateway.Create(ctx, s.gw, &p); err != nil {
		return models.Product{}, s.fail("create_product", "Não foi possível criar o produto.", err)
	}

	s.mu.Lock()
	s.products, _ = upsert(s.products, p, false)
	s.mu.Unlock()
	return p, nil
}

// UpdateProduct overwrites a product's editable fields. Prices already on
// order items are not affected.
func (s *Store) UpdateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	if err := validateProduct(p); err != nil {
		return models.Product{}, s.fail("update_product", "Informe nome e preço válidos.", err)
	}
	s.mu.RLock()
	i := indexOf(s.products, p.ID)
	var current models.Product
	if i >= 0 {
		current = s.products[i]
	}
	s.mu.RUnlock()
	if i < 0 {
		return models.Product{}, s.fail("update_product", "Produto não encontrado.", notFound("product", p.ID))
	}

	current.Name = strings.TrimSpace(p.Name)
	current.Description = p.Description
	current.Price = p.Price
	current.Category = p.Category
	current.Available = p.Available
	current.Stock = p.Stock
	current.MinStock = p.MinStock
	if p.ImageURL != "" {
		current.ImageURL = p.ImageURL
	}
	if err := gateway.Save(ctx, s.gw, &current); err != nil {
		msg := "Não foi possível atualizar o produto."
		if errors.Is(err, gateway.ErrStaleVersion) {
			msg = staleMsg
		}
		return models.Product{}, s.fail("update_product", msg, err)
	}

	s.mu.Lock()
	s.products, _ = upsert(s.products, current, false)
	s.mu.Unlock()
	return current, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id uint) error {
	s.mu.RLock()
	i := indexOf(s.products, id)
	var p models.Product
	if i >= 0 {
		p = s.products[i]
	}
	s.mu.RUnlock()
	if i < 0 {
		return s.fail("delete_product", "Produto não encontrado.", notFound("product", id))
	}
	if err := gateway.Remove(ctx, s.gw, &p); err != nil {
		return s.fail("delete_product", "Não foi possível excluir o produto.", err)
	}

	s.mu.Lock()
	s.products, _ = removeID(s.products, id)
	s.mu.Unlock()
	return nil
}

// CreateCategory adds an active category.
func (s *Store) CreateCategory(ctx context.Context, name string) (models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Category{}, s.fail("create_category", "Informe o nome da categoria.", invalid("category name is empty"))
	}
	rid, err := s.restaurantID()
	if err != nil {
		return models.Category{}, s.fail("create_category", "Não foi possível criar a categoria.", err)
	}
	c := models.Category{RestaurantID: rid, Name: name, Active: true}
	if err := gateway.Create(ctx, s.gw, &c); err != nil {
		return models.Category{}, s.fail("create_category", "Não foi possível criar a categoria.", err)
	}

	s.mu.Lock()
	s.categories, _ = upsert(s.categories, c, false)
	s.mu.Unlock()
	return c, nil
}

// RestaurantSettings are the editable restaurant fields.
type RestaurantSettings struct {
	Name              string  `json:"name"`
	ServiceFeePercent float64 `json:"service_fee_percent"`
	CoverCharge       float64 `json:"cover_charge"`
}

func (s *Store) UpdateRestaurant(ctx context.Context, in RestaurantSettings) (models.Restaurant, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return models.Restaurant{}, s.fail("update_restaurant", "Informe o nome do restaurante.", invalid("restaurant name is empty"))
	}
	if in.ServiceFeePercent < 0 || in.ServiceFeePercent > 100 || in.CoverCharge < 0 {
		return models.Restaurant{}, s.fail("update_restaurant", "Taxa de serviço ou couvert inválidos.",
			invalid("fee %.2f cover %.2f", in.ServiceFeePercent, in.CoverCharge))
	}
	if _, err := s.restaurantID(); err != nil {
		return models.Restaurant{}, s.fail("update_restaurant", "Não foi possível salvar o restaurante.", err)
	}

	r := s.Restaurant()
	r.Name = in.Name
	r.ServiceFeePercent = in.ServiceFeePercent
	r.CoverCharge = in.CoverCharge
	if err := gateway.Save(ctx, s.gw, &r); err != nil {
		msg := "Não foi possível salvar o restaurante."
		if errors.Is(err, gateway.ErrStaleVersion) {
			msg = staleMsg
		}
		return models.Restaurant{}, s.fail("update_restaurant", msg, err)
	}

	s.mu.Lock()
	s.restaurant = r
	s.mu.Unlock()
	return r, nil
}
