package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/joho/godotenv"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Dumps the full ledger into an xlsx workbook, one sheet per transaction
// type, for the finance office's monthly reconciliation.
func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"), os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"), os.Getenv("DB_PORT"))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database:", err)
	}

	outPath := "transactions.xlsx"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	f := excelize.NewFile()
	defer f.Close()

	types := []string{
		models.TxTypePurchase,
		models.TxTypeRedemption,
		models.TxTypeTransfer,
		models.TxTypeAdjustment,
		models.TxTypeEvent,
	}

	header := []interface{}{"ID", "Utorid", "Amount", "Spent", "Related", "Suspicious", "Processed", "Created By", "Remark", "Created At"}

	totalExported := 0

	for i, txType := range types {
		sheetName := txType
		if i == 0 {
			f.SetSheetName("Sheet1", sheetName)
		} else {
			if _, err := f.NewSheet(sheetName); err != nil {
				log.Fatal(err)
			}
		}

		if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
			log.Fatal(err)
		}

		var transactions []models.Transaction
		if err := db.Preload("User").Preload("CreatedBy").
			Where("type = ?", txType).
			Order("id ASC").
			Find(&transactions).Error; err != nil {
			fmt.Printf("Error reading %s transactions: %v\n", txType, err)
			continue
		}

		for rowIdx, t := range transactions {
			spent := ""
			if t.Spent != nil {
				spent = fmt.Sprintf("%.2f", *t.Spent)
			}
			related := ""
			if t.RelatedID != nil {
				related = fmt.Sprintf("%d", *t.RelatedID)
			}

			row := []interface{}{
				t.ID,
				t.User.Utorid,
				t.Amount,
				spent,
				related,
				t.Suspicious,
				t.Processed,
				t.CreatedBy.Utorid,
				t.Remark,
				t.CreatedAt.Format(time.RFC3339),
			}
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
			if err != nil {
				log.Fatal(err)
			}
			if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
				log.Fatal(err)
			}
			totalExported++
		}

		fmt.Printf("Exported %d %s transactions\n", len(transactions), txType)
	}

	if err := f.SaveAs(outPath); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Done. %d transactions written to %s\n", totalExported, outPath)
}
