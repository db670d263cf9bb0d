package webgpu

// WGSL compute shaders for the NHWC feature extraction primitives.
// Using string constants instead of embed for simplicity.
//
// Every shader launches one invocation per output element over a 2D grid
// (see dispatchSize) and starts its Params with size and row_span.

// conv2dShader performs a grouped, dilated 2D convolution.
// Input shape:  [N, H, W, C_in].
// Kernel shape: [KH, KW, C_in/groups, C_out].
// Output shape: [N, H_out, W_out, C_out].
const conv2dShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read> kernel: array<f32>;
@group(0) @binding(2) var<storage, read_write> output: array<f32>;

struct Params {
    size: u32,
    row_span: u32,
    in_h: u32,
    in_w: u32,
    in_c: u32,
    out_h: u32,
    out_w: u32,
    out_c: u32,
    kernel_h: u32,
    kernel_w: u32,
    in_c_group: u32,
    out_c_group: u32,
    stride: u32,
    padding: u32,
    dilation: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.y * params.row_span + global_id.x;
    if (idx >= params.size) {
        return;
    }

    let oc = idx % params.out_c;
    let ow = (idx / params.out_c) % params.out_w;
    let oh = (idx / (params.out_c * params.out_w)) % params.out_h;
    let n = idx / (params.out_c * params.out_w * params.out_h);
    let group = oc / params.out_c_group;

    var sum: f32 = 0.0;
    for (var kh: u32 = 0u; kh < params.kernel_h; kh = kh + 1u) {
        let ih = i32(oh * params.stride + kh * params.dilation) - i32(params.padding);
        if (ih < 0 || ih >= i32(params.in_h)) {
            continue;
        }
        for (var kw: u32 = 0u; kw < params.kernel_w; kw = kw + 1u) {
            let iw = i32(ow * params.stride + kw * params.dilation) - i32(params.padding);
            if (iw < 0 || iw >= i32(params.in_w)) {
                continue;
            }
            let in_base = ((n * params.in_h + u32(ih)) * params.in_w + u32(iw)) * params.in_c + group * params.in_c_group;
            let k_base = (kh * params.kernel_w + kw) * params.in_c_group * params.out_c;
            for (var ci: u32 = 0u; ci < params.in_c_group; ci = ci + 1u) {
                sum = sum + input[in_base + ci] * kernel[k_base + ci * params.out_c + oc];
            }
        }
    }
    output[idx] = sum;
}
`

// biasAddShader adds a per-channel bias: result = x + bias[c].
const biasAddShader = `
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read> bias: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    row_span: u32,
    channels: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.y * params.row_span + global_id.x;
    if (idx < params.size) {
        result[idx] = x[idx] + bias[idx % params.channels];
    }
}
`

// batchNormShader normalizes per channel with precomputed statistics:
// result = (x - mean[c]) * mul[c] + bias[c], mul = scale / sqrt(var + eps).
const batchNormShader = `
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read> mean: array<f32>;
@group(0) @binding(2) var<storage, read> mul: array<f32>;
@group(0) @binding(3) var<storage, read> bias: array<f32>;
@group(0) @binding(4) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    row_span: u32,
    channels: u32,
}
@group(0) @binding(5) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.y * params.row_span + global_id.x;
    if (idx < params.size) {
        let c = idx % params.channels;
        result[idx] = (x[idx] - mean[c]) * mul[c] + bias[c];
    }
}
`

// addShader performs element-wise addition: result = a + b.
const addShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    row_span: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.y * params.row_span + global_id.x;
    if (idx < params.size) {
        result[idx] = a[idx] + b[idx];
    }
}
`

// reluShader applies ReLU: result = max(0, x).
const reluShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    row_span: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.y * params.row_span + global_id.x;
    if (idx < params.size) {
        let v = input[idx];
        if (v > 0.0) {
            result[idx] = v;
        } else {
            result[idx] = 0.0;
        }
    }
}
`

// leakyReluShader applies LeakyReLU: result = x >= 0 ? x : slope * x.
const leakyReluShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    row_span: u32,
    slope: f32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.y * params.row_span + global_id.x;
    if (idx < params.size) {
        let v = input[idx];
        if (v >= 0.0) {
            result[idx] = v;
        } else {
            result[idx] = params.slope * v;
        }
    }
}
`

// resizeNearestShader resizes [N, H, W, C] to [N, out_h, out_w, C]
// with src = floor(dst * in / out).
const resizeNearestShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    row_span: u32,
    in_h: u32,
    in_w: u32,
    out_h: u32,
    out_w: u32,
    channels: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.y * params.row_span + global_id.x;
    if (idx >= params.size) {
        return;
    }
    let c = idx % params.channels;
    let x = (idx / params.channels) % params.out_w;
    let y = (idx / (params.channels * params.out_w)) % params.out_h;
    let n = idx / (params.channels * params.out_w * params.out_h);

    let sy = y * params.in_h / params.out_h;
    let sx = x * params.in_w / params.out_w;
    result[idx] = input[((n * params.in_h + sy) * params.in_w + sx) * params.channels + c];
}
`
