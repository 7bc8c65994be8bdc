package main

import (
	"context"
	"fmt"

	"trinity/internal/model"
	"trinity/internal/money"
	"trinity/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newProductCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "seed-product",
		Short:   "Add a catalog product with opening stock",
		Example: `  trinityctl seed-product --name "Whole milk 1L" --brand Dairyland --price 1.19 --stock 40`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			brand, _ := cmd.Flags().GetString("brand")
			priceStr, _ := cmd.Flags().GetString("price")
			stock, _ := cmd.Flags().GetInt("stock")
			barcode, _ := cmd.Flags().GetString("barcode")

			price, err := decimal.NewFromString(priceStr)
			if err != nil || !money.ValidUnitPrice(price) {
				return fmt.Errorf("--price must be at least 0.01 with at most two decimals")
			}
			if stock < 0 {
				return fmt.Errorf("--stock must not be negative")
			}

			_, db, err := openDB()
			if err != nil {
				return err
			}
			p := &model.Product{
				Name:            name,
				Brand:           brand,
				Price:           price,
				QuantityInStock: stock,
				IsActive:        true,
			}
			if barcode != "" {
				p.Barcode = &barcode
			}
			if err := repository.NewProductRepository(db).Create(context.Background(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created product %q (%s) stock=%d\n", p.Name, p.ID, p.QuantityInStock)
			return nil
		},
	}
	cmd.Flags().String("name", "", "product name (required)")
	cmd.Flags().String("brand", "", "brand")
	cmd.Flags().String("price", "", "unit price, e.g. 2.49 (required)")
	cmd.Flags().Int("stock", 0, "opening stock")
	cmd.Flags().String("barcode", "", "unique barcode")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}
