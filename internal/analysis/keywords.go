package analysis

// KeywordTable holds, per role, the keywords tried against headers in priority order.
type KeywordTable map[Role][]string

// DefaultKeywords returns the built-in keyword table.
func DefaultKeywords() KeywordTable {
	return KeywordTable{
		RoleName: {
			"name", "product", "item", "description", "title",
			"product_name", "item_name", "prod_name", "sku", "code", "id",
		},
		RoleCategory: {
			"category", "catagory", "cat", "type", "class", "group",
			"segment", "product_category", "item_category", "classification",
		},
		RoleStock: {
			"stock", "inventory", "quantity", "qty", "current_stock", "on_hand",
			"available", "balance", "current_quantity", "stock_level", "inventory_level",
		},
		RoleSales: {
			"sales", "sold", "volume", "demand", "usage", "consumption",
			"monthly_sales", "sales_volume", "units_sold", "demand_qty",
			"usage_rate", "monthly_demand",
		},
		RoleReorderLevel: {
			"reorder", "reorder_level", "reorder_point", "min_stock", "minimum",
			"safety_stock", "threshold", "trigger_level", "min_level", "reorder_qty",
			"minimum_stock",
		},
		RoleUnitCost: {
			"price", "cost", "unit_price", "unit_cost", "value", "rate",
			"price_per_unit", "cost_per_unit", "unit_value",
		},
	}
}

// clone returns a deep copy so callers cannot mutate a resolver's table.
func (k KeywordTable) clone() KeywordTable {
	out := make(KeywordTable, len(k))
	for role, words := range k {
		out[role] = append([]string(nil), words...)
	}
	return out
}
