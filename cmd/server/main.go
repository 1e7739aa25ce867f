// Strata - Dynamic Model Engine for multi-site content backends
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aethra/strata/internal/api"
	"github.com/aethra/strata/internal/auth"
	"github.com/aethra/strata/internal/config"
	"github.com/aethra/strata/internal/database"
	"github.com/aethra/strata/internal/engine"
	"github.com/aethra/strata/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var Version = "1.0.0"

func main() {
	if len(os.Args) > 1 {
		runCLI()
		return
	}
	startServer()
}

func startServer() {
	fmt.Printf("Strata %s - Starting...\n", Version)

	db := connectDB()
	log.Println("Database connected")

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations complete")

	cfgService := config.NewService(db)
	if err := cfgService.SetupDefaults(); err != nil {
		log.Fatalf("Config setup failed: %v", err)
	}
	cfg := cfgService.Load()

	if cfg.Server.Mode == "release" {
		// gin.SetMode has to run before the router is built
		os.Setenv("GIN_MODE", "release")
	}

	eng := engine.New(db)
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessExpiry, cfg.Auth.RefreshExpiry)

	handler := api.NewHandler(eng, jwtService)
	schemaHandler := api.NewSchemaHandler(eng, jwtService)
	authHandler := api.NewAuthHandler(db, jwtService)
	router := api.SetupRouter(cfg, handler, schemaHandler, authHandler)

	port := cfg.Server.Port
	log.Printf("Server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// connectDB opens the database named by DB_DRIVER (postgres by default).
// TranslateError turns driver duplicate-key failures into gorm.ErrDuplicatedKey,
// which the schema registry relies on.
func connectDB() *gorm.DB {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch getEnv("DB_DRIVER", "postgres") {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			requireEnv("DB_USER"),
			requireEnv("DB_PASSWORD"),
			requireEnv("DB_HOST"),
			requireEnv("DB_PORT"),
			requireEnv("DB_NAME"),
		)
		dialector = mysql.Open(dsn)
	default:
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			requireEnv("DB_HOST"),
			requireEnv("DB_PORT"),
			requireEnv("DB_USER"),
			requireEnv("DB_PASSWORD"),
			requireEnv("DB_NAME"),
		)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	return db
}

func requireEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("Missing required env: %s", key)
	}
	return value
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// CLI
func runCLI() {
	cmd := os.Args[1]
	switch cmd {
	case "serve":
		startServer()
	case "migrate":
		db := connectDB()
		if err := database.RunMigrations(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("Migrations complete")
	case "seed":
		db := connectDB()
		cfgService := config.NewService(db)
		if err := cfgService.SetupDefaults(); err != nil {
			log.Fatalf("Seed failed: %v", err)
		}
		fmt.Println("Defaults seeded")
	case "site":
		runSiteCmd()
	case "user":
		runUserCmd()
	default:
		printUsage()
	}
}

func printUsage() {
	fmt.Println(`Usage: strata <command>
Commands:
  serve                         Start server
  migrate                       Run migrations
  seed                          Seed default configuration
  site list                     List sites
  site create --code= --name=   Create site
  user list --site=             List users
  user create --site= --email= --password= [--admin] Create user`)
}

func runSiteCmd() {
	if len(os.Args) < 3 {
		printUsage()
		return
	}
	db := connectDB()
	switch os.Args[2] {
	case "list":
		var sites []models.Site
		db.Find(&sites)
		for _, s := range sites {
			fmt.Printf("%s - %s\n", s.Code, s.Name)
		}
	case "create":
		code, name := getFlag("--code"), getFlag("--name")
		if code == "" || name == "" {
			printUsage()
			return
		}
		site := models.Site{Code: code, Name: name, Domain: getFlag("--domain"), IsActive: true}
		if err := db.Create(&site).Error; err != nil {
			log.Fatalf("Failed: %v", err)
		}
		fmt.Printf("Site created: %s (%s)\n", code, site.ID)
	case "delete":
		code := getFlag("--code")
		if code == "" {
			printUsage()
			return
		}
		db.Where("code = ?", code).Delete(&models.Site{})
		fmt.Printf("Site deleted: %s\n", code)
	}
}

func runUserCmd() {
	if len(os.Args) < 3 {
		printUsage()
		return
	}
	db := connectDB()
	switch os.Args[2] {
	case "list":
		siteCode := getFlag("--site")
		if siteCode == "" {
			printUsage()
			return
		}
		var site models.Site
		if db.Where("code = ?", siteCode).First(&site).Error != nil {
			log.Fatal("Site not found")
		}
		var users []models.User
		db.Where("site_id = ?", site.ID).Find(&users)
		for _, u := range users {
			fmt.Printf("%s <%s>\n", u.FirstName+" "+u.LastName, u.Email)
		}
	case "create":
		siteCode := getFlag("--site")
		email := getFlag("--email")
		password := getFlag("--password")
		if siteCode == "" || email == "" || password == "" {
			printUsage()
			return
		}
		var site models.Site
		if db.Where("code = ?", siteCode).First(&site).Error != nil {
			log.Fatal("Site not found")
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			log.Fatalf("Failed: %v", err)
		}
		user := models.User{
			SiteID:       site.ID,
			Email:        email,
			PasswordHash: hash,
			FirstName:    getFlag("--first"),
			LastName:     getFlag("--last"),
			IsActive:     true,
		}
		if err := db.Create(&user).Error; err != nil {
			log.Fatalf("Failed: %v", err)
		}
		// Optionally promote to site admin via the global system role
		if hasFlag("--admin") {
			var role models.Role
			if err := db.Where("code = ? AND site_id IS NULL", "site_admin").First(&role).Error; err != nil {
				log.Fatalf("Failed to find site_admin role: %v", err)
			}
			if err := db.Exec("INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)", user.ID, role.ID).Error; err != nil {
				log.Fatalf("Failed to assign role: %v", err)
			}
		}
		fmt.Printf("User created: %s\n", email)
	}
}

func getFlag(name string) string {
	prefix := name + "="
	for _, arg := range os.Args {
		if len(arg) > len(prefix) && arg[:len(prefix)] == prefix {
			return arg[len(prefix):]
		}
	}
	return ""
}

func hasFlag(name string) bool {
	for _, arg := range os.Args {
		if arg == name {
			return true
		}
	}
	return false
}
