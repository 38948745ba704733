package controllers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/storage"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type MenuController struct {
	*Base
	Uploader *storage.Uploader
}

func NewMenuController(b *Base, up *storage.Uploader) *MenuController {
	return &MenuController{Base: b, Uploader: up}
}

type productRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"required"`
	Category    string  `json:"category"`
	Available   *bool   `json:"available"`
	ImageURL    string  `json:"image_url"`
	Stock       int     `json:"stock"`
	MinStock    int     `json:"min_stock"`
}

func (r productRequest) product() models.Product {
	available := true
	if r.Available != nil {
		available = *r.Available
	}
	return models.Product{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Category:    strings.TrimSpace(r.Category),
		Available:   available,
		ImageURL:    r.ImageURL,
		Stock:       r.Stock,
		MinStock:    r.MinStock,
	}
}

func (mc *MenuController) GetAllProducts(c *gin.Context) {
	s, ok := mc.storeFor(c)
	if !ok {
		return
	}
	products := s.Snapshot().Products
	if cat := c.Query("category"); cat != "" {
		filtered := []models.Product{}
		for _, p := range products {
			if p.Category == cat {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}
	utils.RespondJSON(c, http.StatusOK, "List of products", products)
}

func (mc *MenuController) CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	s, ok := mc.storeFor(c)
	if !ok {
		return
	}
	p, err := s.CreateProduct(c.Request.Context(), req.product())
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Product created", p)
}

func (mc *MenuController) UpdateProduct(c *gin.Context) {
	id, ok := idParam(c, "product_id")
	if !ok {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	s, ok := mc.storeFor(c)
	if !ok {
		return
	}
	p := req.product()
	p.ID = id
	updated, err := s.UpdateProduct(c.Request.Context(), p)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Product updated", updated)
}

func (mc *MenuController) DeleteProduct(c *gin.Context) {
	id, ok := idParam(c, "product_id")
	if !ok {
		return
	}
	s, ok := mc.storeFor(c)
	if !ok {
		return
	}
	var image string
	for _, p := range s.Snapshot().Products {
		if p.ID == id {
			image = p.ImageURL
		}
	}
	if err := s.DeleteProduct(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	if image != "" {
		if err := mc.Uploader.Remove(image); err != nil {
			mc.Log.WithError(err).Warn("removing product image")
		}
	}
	utils.RespondJSON(c, http.StatusOK, "Product deleted", nil)
}

// UploadImage stores the multipart "image" field and points the product at it.
func (mc *MenuController) UploadImage(c *gin.Context) {
	id, ok := idParam(c, "product_id")
	if !ok {
		return
	}
	fh, err := c.FormFile("image")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if fh.Size > storage.MaxImageSize {
		utils.RespondMessage(c, http.StatusRequestEntityTooLarge, "A imagem deve ter no máximo 5 MB.")
		return
	}

	s, ok := mc.storeFor(c)
	if !ok {
		return
	}
	var current models.Product
	found := false
	for _, p := range s.Snapshot().Products {
		if p.ID == id {
			current, found = p, true
		}
	}
	if !found {
		respondErr(c, gateway.ErrNotFound)
		return
	}

	f, err := fh.Open()
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	defer f.Close()

	url, err := mc.Uploader.Save(c.Request.Context(), fh.Filename, f)
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		utils.RespondMessage(c, http.StatusBadRequest, "Formato de imagem não suportado.")
		return
	case errors.Is(err, storage.ErrTooLarge):
		utils.RespondMessage(c, http.StatusRequestEntityTooLarge, "A imagem deve ter no máximo 5 MB.")
		return
	case err != nil:
		respondErr(c, err)
		return
	}

	old := current.ImageURL
	current.ImageURL = url
	updated, err := s.UpdateProduct(c.Request.Context(), current)
	if err != nil {
		mc.Uploader.Remove(url)
		respondErr(c, err)
		return
	}
	if old != "" {
		mc.Uploader.Remove(old)
	}
	utils.RespondJSON(c, http.StatusOK, "Image uploaded", updated)
}

func (mc *MenuController) GetAllCategories(c *gin.Context) {
	s, ok := mc.storeFor(c)
	if !ok {
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of categories", s.Snapshot().Categories)
}

func (mc *MenuController) CreateCategory(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	s, ok := mc.storeFor(c)
	if !ok {
		return
	}
	cat, err := s.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Category created", cat)
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// PublishMenu sets the public slug and visibility of the digital menu.
func (mc *MenuController) PublishMenu(c *gin.Context) {
	var req struct {
		Slug      string `json:"slug" binding:"required"`
		Published bool   `json:"published"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugPattern.MatchString(req.Slug) {
		utils.RespondMessage(c, http.StatusBadRequest, "Use apenas letras minúsculas, números e hífens no endereço do cardápio.")
		return
	}

	s, ok := mc.storeFor(c)
	if !ok {
		return
	}
	pub, err := mc.GW.PublishMenu(c.Request.Context(), s.Restaurant().ID, req.Slug, req.Published)
	if err != nil {
		if errors.Is(err, gateway.ErrConstraint) {
			utils.RespondMessage(c, http.StatusConflict, "Este endereço já está em uso.")
			return
		}
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu publication saved", pub)
}

type menuSection struct {
	Category string           `json:"category"`
	Products []models.Product `json:"products"`
}

// PublicMenu serves the published digital menu: available products grouped
// by active category. Uncategorized products come last under "Outros".
func (mc *MenuController) PublicMenu(c *gin.Context) {
	ctx := c.Request.Context()
	pub, err := mc.GW.PublishedMenu(ctx, c.Param("slug"))
	if err != nil {
		respondErr(c, err)
		return
	}
	restaurant, err := gateway.First[models.Restaurant](ctx, mc.GW, pub.RestaurantID)
	if err != nil {
		respondErr(c, err)
		return
	}
	cats, err := gateway.Find[models.Category](ctx, mc.GW, gateway.Filter{"restaurant_id": pub.RestaurantID, "active": true})
	if err != nil {
		respondErr(c, err)
		return
	}
	products, err := gateway.Find[models.Product](ctx, mc.GW, gateway.Filter{"restaurant_id": pub.RestaurantID, "available": true})
	if err != nil {
		respondErr(c, err)
		return
	}

	byCategory := map[string][]models.Product{}
	for _, p := range products {
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}
	sections := []menuSection{}
	for _, cat := range cats {
		if ps := byCategory[cat.Name]; len(ps) > 0 {
			sections = append(sections, menuSection{Category: cat.Name, Products: ps})
		}
	}
	if ps := byCategory[""]; len(ps) > 0 {
		sections = append(sections, menuSection{Category: "Outros", Products: ps})
	}

	utils.RespondJSON(c, http.StatusOK, "Menu", gin.H{
		"restaurant": restaurant.Name,
		"sections":   sections,
	})
}
