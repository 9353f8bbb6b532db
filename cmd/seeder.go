package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/waypoint-hq/field-expense/internal/auth"
	"github.com/waypoint-hq/field-expense/internal/user"
	userpg "github.com/waypoint-hq/field-expense/internal/user/postgres"
	"golang.org/x/crypto/bcrypt"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample users for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to open gorm: %v", err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte("password"), cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash seed password: %v", err)
		}

		repo := userpg.NewUserRepository(gormDB)
		ctx := context.Background()

		seedUsers := []*user.User{
			{Email: "meera.admin@waypoint.dev", Name: "Meera Admin", Role: user.RoleSuperAdmin},
			{Email: "arjun.supervisor@waypoint.dev", Name: "Arjun Supervisor", Role: user.RoleAdmin},
			{Email: "ravi.field@waypoint.dev", Name: "Ravi Field", Role: user.RoleEmployee},
		}

		var supervisorID int64
		for _, u := range seedUsers {
			if existing, err := repo.GetByEmail(ctx, u.Email); err == nil {
				fmt.Printf("user %s already exists (id=%d)\n", u.Email, existing.ID)
				*u = *existing
			} else {
				u.PasswordHash = string(hash)
				u.IsActive = true
				if u.Role == user.RoleEmployee && supervisorID > 0 {
					u.ReportsTo = &supervisorID
				}
				if err := repo.Create(ctx, u); err != nil {
					log.Fatalf("failed to seed user %s: %v", u.Email, err)
				}
				fmt.Printf("seeded user %s (id=%d, role=%s)\n", u.Email, u.ID, u.Role)
			}
			if u.Role == user.RoleAdmin {
				supervisorID = u.ID
			}

			token, err := auth.GenerateDevToken(cfg.Security.JWTSecret, u, 30*24*time.Hour)
			if err != nil {
				log.Fatalf("failed to sign dev token for %s: %v", u.Email, err)
			}
			fmt.Printf("  dev token: %s\n", token)
		}
	},
}
