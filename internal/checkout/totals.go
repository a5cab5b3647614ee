package checkout

// ClampDiscounts keeps each discount on its own axis: the item discount can
// never exceed the subtotal and the ship discount can never exceed the ship
// cost, so the shipping term (shipCost - shipDiscount) stays non-negative.
func ClampDiscounts(subtotal, shipCost, itemDiscount, shipDiscount int64) (int64, int64) {
	if itemDiscount > subtotal {
		itemDiscount = subtotal
	}
	if shipDiscount > shipCost {
		shipDiscount = shipCost
	}
	return itemDiscount, shipDiscount
}

func ComputeTotal(subtotal, itemDiscount, shipCost, shipDiscount int64) int64 {
	return subtotal - itemDiscount + (shipCost - shipDiscount)
}
