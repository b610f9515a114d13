package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Product represents an item in the catalog. Price is in minor currency units.
type Product struct {
	ID          bson.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string        `json:"name" bson:"name"`
	Description string        `json:"description" bson:"description"`
	Category    string        `json:"category" bson:"category"`
	Price       int64         `json:"price" bson:"price"`
	Stock       int           `json:"stock" bson:"stock"`
	ImageURL    string        `json:"image_url,omitempty" bson:"image_url,omitempty"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" bson:"updated_at"`
}

type CreateProductRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=200"`
	Description string `json:"description" binding:"max=2000"`
	Category    string `json:"category" binding:"required,min=2,max=100"`
	Price       int64  `json:"price" binding:"required,gt=0"`
	Stock       int    `json:"stock" binding:"gte=0"`
	ImageURL    string `json:"image_url" binding:"omitempty,url"`
}

// UpdateProductRequest carries a partial update; nil fields are left untouched.
type UpdateProductRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=2,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Category    *string `json:"category" binding:"omitempty,min=2,max=100"`
	Price       *int64  `json:"price" binding:"omitempty,gt=0"`
	Stock       *int    `json:"stock" binding:"omitempty,gte=0"`
	ImageURL    *string `json:"image_url" binding:"omitempty,url"`
}

func (req *CreateProductRequest) ToProduct() *Product {
	product := &Product{
		ID:          bson.NewObjectID(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	}
	product.SetTimestamps()
	return product
}

// Apply copies the non-nil fields onto the product.
func (req *UpdateProductRequest) Apply(p *Product) {
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Category != nil {
		p.Category = strings.TrimSpace(*req.Category)
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.ImageURL != nil {
		p.ImageURL = *req.ImageURL
	}
	p.SetTimestamps()
}

// IsEmpty reports whether the request changes nothing.
func (req *UpdateProductRequest) IsEmpty() bool {
	return req.Name == nil && req.Description == nil && req.Category == nil &&
		req.Price == nil && req.Stock == nil && req.ImageURL == nil
}

func (p *Product) IsInStock() bool {
	return p.Stock > 0
}

func (p *Product) IsLowStock(threshold int) bool {
	return p.Stock <= threshold && p.Stock > 0
}

func (p *Product) SetTimestamps() {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}
