package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Exports ended chat sessions and the coin ledger to an Excel workbook for
// offline review. Usage: go run ./scripts/export_sessions [output.xlsx]
func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	output := "sessions_export.xlsx"
	if len(os.Args) > 1 {
		output = os.Args[1]
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Asia/Tehran",
		os.Getenv("DB_HOST"), os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"), os.Getenv("DB_PORT"))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database:", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := exportSessions(db, f); err != nil {
		log.Fatal("failed to export sessions:", err)
	}
	if err := exportLedger(db, f); err != nil {
		log.Fatal("failed to export ledger:", err)
	}

	f.DeleteSheet("Sheet1")
	if err := f.SaveAs(output); err != nil {
		log.Fatal("failed to save workbook:", err)
	}
	fmt.Printf("Exported to %s\n", output)
}

func exportSessions(db *gorm.DB, f *excelize.File) error {
	var sessions []models.ChatSession
	if err := db.Where("status = ?", models.ChatStatusEnded).
		Order("ended_at DESC").
		Find(&sessions).Error; err != nil {
		return err
	}

	sheet := "Sessions"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"ID", "User1", "User2", "Messages", "Msgs1", "Msgs2",
		"Cost1", "Cost2", "Refunded1", "Refunded2", "StartedAt", "EndedAt", "EndedBy"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, s := range sessions {
		row := i + 2
		endedAt := ""
		if s.EndedAt != nil {
			endedAt = s.EndedAt.Format("2006-01-02 15:04:05")
		}
		var endedBy uint
		if s.EndedBy != nil {
			endedBy = *s.EndedBy
		}

		values := []interface{}{s.ID, s.User1ID, s.User2ID, s.MessageCount,
			s.MessageCount1, s.MessageCount2, s.CostPaid1, s.CostPaid2,
			s.Refunded1, s.Refunded2,
			s.StartedAt.Format("2006-01-02 15:04:05"), endedAt, endedBy}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	fmt.Printf("Exported %d sessions\n", len(sessions))
	return nil
}

func exportLedger(db *gorm.DB, f *excelize.File) error {
	var transactions []models.CoinTransaction
	if err := db.Order("created_at DESC").Find(&transactions).Error; err != nil {
		return err
	}

	sheet := "Ledger"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"ID", "UserID", "Amount", "Type", "Description", "CreatedAt"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, tx := range transactions {
		row := i + 2
		values := []interface{}{tx.ID, tx.UserID, tx.Amount, tx.TransactionType,
			tx.Description, tx.CreatedAt.Format("2006-01-02 15:04:05")}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	fmt.Printf("Exported %d ledger rows\n", len(transactions))
	return nil
}
