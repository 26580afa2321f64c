package main

import (
	"context"
	"errors"
	"time"

	"xingqu-shop/internal/config"
	"xingqu-shop/internal/database"
	"xingqu-shop/internal/domain"
	"xingqu-shop/internal/logger"
	"xingqu-shop/internal/repository"
	"xingqu-shop/internal/service"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type seedProduct struct {
	title         string
	description   string
	price         string
	originalPrice string
	stock         int
	image         string
}

type seedCategory struct {
	name     string
	slug     string
	icon     string
	products []seedProduct
}

var catalog = []seedCategory{
	{
		name: "汽车用品", slug: "car-accessories", icon: "🚗",
		products: []seedProduct{
			{"车载香薰摆件", "出风口香薰，淡雅木质香", "39.90", "59.00", 120, "/uploads/seed-car-aroma.jpg"},
			{"卡通头枕", "记忆棉护颈头枕", "69.00", "", 60, "/uploads/seed-car-pillow.jpg"},
		},
	},
	{
		name: "电脑配件", slug: "computer-parts", icon: "💻",
		products: []seedProduct{
			{"机械键盘键帽", "PBT 二次成型键帽 128 键", "129.00", "169.00", 45, "/uploads/seed-keycaps.jpg"},
			{"桌面显示器支架", "铝合金升降支架", "199.00", "", 30, "/uploads/seed-monitor-arm.jpg"},
		},
	},
	{
		name: "手办周边", slug: "figures", icon: "🎮",
		products: []seedProduct{
			{"像素勇者手办", "PVC 涂装成品，高 15cm", "299.00", "359.00", 12, "/uploads/seed-figure.jpg"},
			{"亚克力立牌", "双面印刷立牌", "35.00", "", 200, "/uploads/seed-standee.jpg"},
		},
	},
	{
		name: "挂饰装饰", slug: "decorations", icon: "✨",
		products: []seedProduct{
			{"星星挂饰", "金属镂空后视镜挂件", "25.00", "", 150, "/uploads/seed-star.jpg"},
			{"毛绒钥匙扣", "软萌毛绒挂件", "19.90", "29.90", 300, "/uploads/seed-keychain.jpg"},
		},
	},
}

var seedCoupons = []service.CouponInput{
	{Name: "满100减10", Type: domain.CouponTypeFixed, DiscountValue: decimal.NewFromInt(10), MinAmount: decimal.NewFromInt(100)},
	{
		Name:          "全场9折",
		Type:          domain.CouponTypePercent,
		DiscountValue: decimal.NewFromInt(10),
		MinAmount:     decimal.NewFromInt(50),
		MaxDiscount:   decimal.NewNullDecimal(decimal.NewFromInt(30)),
	},
}

func main() {
	// .env is optional; the environment wins
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbService, err := database.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer dbService.Close()

	if err := database.RunMigrations(ctx, dbService.DB(), cfg.Server.MigrationsDir, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	db := dbService.DB()
	categoryRepo := repository.NewCategoryRepository(db)
	categoryService := service.NewCategoryService(categoryRepo)
	productService := service.NewProductService(repository.NewProductRepository(db), dbService)
	couponService := service.NewCouponService(repository.NewCouponRepository(db))

	created := 0
	for i, sc := range catalog {
		if _, err := categoryRepo.FindBySlug(ctx, sc.slug); err == nil {
			log.Info("Category already seeded", zap.String("slug", sc.slug))
			continue
		} else if !errors.Is(err, repository.ErrCategoryNotFound) {
			log.Fatal("Failed to look up category", zap.String("slug", sc.slug), zap.Error(err))
		}

		icon := sc.icon
		category, err := categoryService.Create(ctx, service.CategoryInput{
			Name:      sc.name,
			Slug:      sc.slug,
			Icon:      &icon,
			SortOrder: i + 1,
		})
		if err != nil {
			log.Fatal("Failed to create category", zap.String("slug", sc.slug), zap.Error(err))
		}

		for _, sp := range sc.products {
			input := service.ProductInput{
				Title:       sp.title,
				Description: sp.description,
				Price:       decimal.RequireFromString(sp.price),
				Stock:       sp.stock,
				CategoryID:  category.ID,
				Status:      domain.ProductStatusActive,
				Images:      []string{sp.image},
			}
			if sp.originalPrice != "" {
				input.OriginalPrice = decimal.NewNullDecimal(decimal.RequireFromString(sp.originalPrice))
			}
			if _, err := productService.Create(ctx, input); err != nil {
				log.Fatal("Failed to create product", zap.String("title", sp.title), zap.Error(err))
			}
		}
		created++
		log.Info("Category seeded", zap.String("slug", sc.slug), zap.Int("products", len(sc.products)))
	}

	// coupons have no natural key, so they are only seeded alongside a fresh catalog
	if created == len(catalog) {
		for _, input := range seedCoupons {
			if _, err := couponService.Create(ctx, input); err != nil {
				log.Fatal("Failed to create coupon", zap.String("name", input.Name), zap.Error(err))
			}
		}
		log.Info("Coupons seeded", zap.Int("count", len(seedCoupons)))
	}

	log.Info("Seeding complete", zap.Int("categories_created", created))
}
