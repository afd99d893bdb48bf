// Package ols 基于 QR 分解的线性回归引擎.
//
// 流程: 构造设计矩阵 (常数列放最后, 加权/准差分, 剔除缺失) -> Householder QR
// -> 条件数检查 -> 求 R^{-1} 与 Q -> 系数/拟合值/残差 -> 协方差
// (经典、HC0-HC3、Newey-West HAC 三选一) -> R²、F 等统计量.
//
// 每次调用独立分配工作矩阵, 不共享可变状态, 可在多个 goroutine 中对同一只读数据集并发估计.
package ols

import (
	"regcore/dataset"
	"regcore/infra/errorx"
	"regcore/infra/observe/log/staticLog"
)

// workspace 单次估计独占的工作矩阵, 任何返回路径上都会被 release
type workspace struct {
	d  *design
	y  []float64
	f  *qrFactors
	ft *fit
}

func (w *workspace) release() {
	*w = workspace{}
}

// Estimate OLS (含 WLS、准差分) 估计.
// 失败时返回的 Model 只有 Errcode 有意义, error 携带同一错误码.
func Estimate(ds *dataset.Dataset, list List, opt Opt, p Params) (*Model, error) {
	var mdl *Model
	if ds != nil && len(list) > 0 {
		mdl = newModel(ds, list)
	} else {
		mdl = &Model{}
	}

	ws := &workspace{}
	defer ws.release()

	if err := estimate(ds, list, opt, p, mdl, ws); err != nil {
		mdl.Errcode = errorx.CodeOf(err)
		staticLog.Log.Debugf("ols: estimation failed: %v", err)
		return mdl, err
	}
	return mdl, nil
}

func estimate(ds *dataset.Dataset, list List, opt Opt, p Params, mdl *Model, ws *workspace) error {
	d, err := newDesign(ds, list, opt, p)
	if err != nil {
		return err
	}
	ws.d = d
	sel := resolveVcv(opt, p, d.m)

	X := d.buildX()
	ws.y = d.buildY()
	mdl.TSS = totalSS(ws.y, d.ifc)

	ws.f, err = factorize(X)
	if err != nil {
		return err
	}

	ws.ft = solveCoeffs(ws.f, ws.y, mdl)
	residuals(d, ws.ft, mdl, opt)
	computeVcv(sel, d, ws.f, ws.ft.u, mdl)
	finalize(mdl, ws.ft, p.Wald)
	return nil
}
