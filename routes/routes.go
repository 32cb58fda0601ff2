package routes

import (
	"github.com/Dayvhiid/Simple-E-commerce-API/controllers"
	"github.com/Dayvhiid/Simple-E-commerce-API/middleware"

	"github.com/gin-gonic/gin"
)

type Controllers struct {
	Auth    *controllers.AuthController
	Product *controllers.ProductController
	Cart    *controllers.CartController
	Payment *controllers.PaymentController
}

// Auth endpoints get a tighter limit than the global one to slow down credential stuffing.
const (
	authRequestsPerMinute = 20
	authBurst             = 10
)

func RegisterRoutes(r *gin.Engine, ctrl Controllers, tokens middleware.TokenValidator) {
	requireAuth := middleware.AuthMiddleware(tokens)
	api := r.Group("/api")

	authRoutes := api.Group("/auth", middleware.RateLimitMiddleware(authRequestsPerMinute, authBurst))
	{
		authRoutes.POST("/register", ctrl.Auth.Register)
		authRoutes.POST("/login", ctrl.Auth.Login)
	}

	productRoutes := api.Group("/products")
	{
		productRoutes.GET("", ctrl.Product.GetProducts)
		productRoutes.GET("/mine", requireAuth, ctrl.Product.GetMyProducts)
		productRoutes.GET("/:id", ctrl.Product.GetProductByID)
		productRoutes.POST("", requireAuth, ctrl.Product.CreateProduct)
		productRoutes.PUT("/:id", requireAuth, ctrl.Product.UpdateProduct)
		productRoutes.DELETE("/:id", requireAuth, ctrl.Product.DeleteProduct)
	}

	cartRoutes := api.Group("/cart", requireAuth)
	{
		cartRoutes.GET("", ctrl.Cart.GetCart)
		cartRoutes.POST("/add", ctrl.Cart.AddToCart)
		cartRoutes.PUT("/update", ctrl.Cart.UpdateCartItem)
		cartRoutes.DELETE("/remove/:productId", ctrl.Cart.RemoveFromCart)
		cartRoutes.DELETE("/clear", ctrl.Cart.ClearCart)
	}

	paymentRoutes := api.Group("/payment")
	{
		// Authenticated by the verif-hash header, not a bearer token.
		paymentRoutes.POST("/webhook", ctrl.Payment.FlutterwaveWebhook)

		paymentRoutes.POST("/initiate", requireAuth, ctrl.Payment.InitiatePayment)
		paymentRoutes.GET("/verify/:reference", requireAuth, ctrl.Payment.VerifyPayment)
		paymentRoutes.GET("/orders", requireAuth, ctrl.Payment.GetUserOrders)
		paymentRoutes.GET("/orders/:orderId", requireAuth, ctrl.Payment.GetOrder)
	}
}
