package enums

import "fmt"

// ProductCategory represents the canonical product categories supported by the catalog.
type ProductCategory string

const (
	ProductCategoryProduce   ProductCategory = "produce"
	ProductCategoryPantry    ProductCategory = "pantry"
	ProductCategoryDairy     ProductCategory = "dairy"
	ProductCategoryBeverage  ProductCategory = "beverage"
	ProductCategoryTextile   ProductCategory = "textile"
	ProductCategorySkincare  ProductCategory = "skincare"
	ProductCategoryHomeGoods ProductCategory = "home_goods"
	ProductCategoryGarden    ProductCategory = "garden"
	ProductCategoryCraft     ProductCategory = "craft"
)

var validProductCategories = []ProductCategory{
	ProductCategoryProduce,
	ProductCategoryPantry,
	ProductCategoryDairy,
	ProductCategoryBeverage,
	ProductCategoryTextile,
	ProductCategorySkincare,
	ProductCategoryHomeGoods,
	ProductCategoryGarden,
	ProductCategoryCraft,
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ProductCategory.
func (c ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}

// ProductStatus maps to the product_status enum in Postgres.
type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusActive   ProductStatus = "active"
	ProductStatusArchived ProductStatus = "archived"
	ProductStatusRemoved  ProductStatus = "removed"
)

var validProductStatuses = []ProductStatus{
	ProductStatusDraft,
	ProductStatusActive,
	ProductStatusArchived,
	ProductStatusRemoved,
}

// String implements fmt.Stringer.
func (s ProductStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProductStatus.
func (s ProductStatus) IsValid() bool {
	for _, candidate := range validProductStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Purchasable reports whether the listing can still be added to a cart.
func (s ProductStatus) Purchasable() bool {
	return s == ProductStatusActive
}

// ParseProductStatus converts raw input into a ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	for _, candidate := range validProductStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product status %q", value)
}
