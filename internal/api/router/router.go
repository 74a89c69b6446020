package router

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
	"gorm.io/gorm"

	"reelcv-ai-go/internal/api/handler"
	"reelcv-ai-go/internal/config"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, cfg *config.Config, analysisHandler *handler.AnalysisHandler) {
	api := h.Group("/api/v1")

	// 配置了API Key时启用鉴权，健康检查除外
	if cfg.Server.APIKey != "" {
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
			keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
				return key == cfg.Server.APIKey, nil
			}),
		))
	}

	api.POST("/analysis", func(c context.Context, ctx *app.RequestContext) {
		var req handler.AnalysisSubmitRequest
		if err := ctx.BindAndValidate(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
			return
		}

		resp, err := analysisHandler.HandleSubmitAnalysis(c, &req)
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
			return
		}

		ctx.JSON(consts.StatusAccepted, resp)
	})

	api.GET("/analysis/:id", func(c context.Context, ctx *app.RequestContext) {
		analysisID := ctx.Param("id")
		resp, err := analysisHandler.HandleGetAnalysis(c, analysisID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				ctx.JSON(consts.StatusNotFound, utils.H{"error": "分析记录不存在"})
				return
			}
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/analysis/:id/progress", func(c context.Context, ctx *app.RequestContext) {
		analysisID := ctx.Param("id")
		snapshot, err := analysisHandler.HandleGetProgress(c, analysisID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				ctx.JSON(consts.StatusNotFound, utils.H{"error": "分析记录不存在"})
				return
			}
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, snapshot)
	})

	api.GET("/candidates/:id/analyses", func(c context.Context, ctx *app.RequestContext) {
		candidateID := ctx.Param("id")
		summaries, err := analysisHandler.HandleListCandidateAnalyses(c, candidateID)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"analyses": summaries})
	})

	// 健康检查不走鉴权，直接注册在根路由上
	h.GET("/api/v1/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}
