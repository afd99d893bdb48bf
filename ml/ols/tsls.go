package ols

import (
	"fmt"

	"regcore/dataset"
	"regcore/infra/errorx"
	"regcore/infra/errorx/errCode"
)

// TSLSCovariance 两阶段最小二乘的协方差步骤: 只做 QR 分解和协方差估计, 不求系数.
//
// list 为第二阶段回归列表, 内生回归量已替换为第一阶段拟合值;
// mdl 须已含结构方程的系数、全长残差 Uhat 以及 Sigma. 结果写入 mdl.VCV 与 mdl.SE.
func TSLSCovariance(ds *dataset.Dataset, list List, mdl *Model, opt Opt, p Params) error {
	ws := &workspace{}
	defer ws.release()

	err := tslsVcv(ds, list, mdl, opt, p, ws)
	if mdl != nil {
		mdl.Errcode = errorx.CodeOf(err)
	}
	return err
}

func tslsVcv(ds *dataset.Dataset, list List, mdl *Model, opt Opt, p Params, ws *workspace) error {
	if mdl == nil {
		return errorx.New(errCode.INVALID_VALUE, "nil model")
	}
	d, err := newDesign(ds, list, opt, p)
	if err != nil {
		return err
	}
	ws.d = d
	if d.n != mdl.NCoeff {
		return errorx.New(errCode.INVALID_VALUE,
			fmt.Sprintf("second-stage list has %d regressors, model has %d", d.n, mdl.NCoeff))
	}
	if len(mdl.Uhat) != ds.N {
		return errorx.New(errCode.INVALID_VALUE, "model residuals do not span the dataset")
	}

	u := make([]float64, d.m)
	for i, t := range d.obs {
		if dataset.IsNA(mdl.Uhat[t]) {
			return errorx.New(errCode.MISSING_DATA, fmt.Sprintf("structural residual missing at observation %d", t))
		}
		u[i] = mdl.Uhat[t]
	}

	ws.f, err = factorize(d.buildX())
	if err != nil {
		return err
	}
	computeVcv(resolveVcv(opt, p, d.m), d, ws.f, u, mdl)
	return nil
}
